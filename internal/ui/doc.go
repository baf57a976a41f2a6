// Package ui provides terminal UI components for the improvctl CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output. The
// components follow a "run once and exit" pattern: they render output but
// do not require interaction, with the exception of the prompts.
//
// # Components
//
//   - Header: command banner showing the operation and its parameters
//   - Progress and Runner: numbered step list with a progress bar
//   - Result boxes: success, warning and failure boxes with details
//   - Network table: scanned access points with signal bars
//   - Wait: a spinner shown while waiting on the device
//   - Prompts: password entry without echo, and yes/no confirmation
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Provision",
//	    Command:   "improvctl provision",
//	    Params:    []ui.Param{{Key: "Port", Value: port}},
//	    StepNames: []string{"Read state", "Send credentials", "Wait for connection"},
//	})
//
//	_, err := runner.Run(func(onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, ui.StepComplete, "")
//	    return nil, nil
//	})
//
// # Logging Integration
//
// zap logging is silent unless IMPROV_LOG_LEVEL is set, so the styled output
// is displayed cleanly.
package ui
