package ui

import (
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a multi-step command
type RunnerConfig struct {
	Title           string   // Command title (e.g., "Provision")
	Command         string   // Full command (e.g., "improvctl provision")
	Params          []Param  // Parameters to display in header
	StepNames       []string // Names for each step
	Troubleshooting []string // Tips shown when the operation fails
	Output          io.Writer
}

// Runner orchestrates the header, step list and result box of a
// multi-step command.
type Runner struct {
	config   RunnerConfig
	progress *Progress
	printer  *Printer
}

// Operation is the work performed by a Runner. It reports progress through
// onStep and returns details for the success box.
type Operation func(onStep StepCallback) ([]Param, error)

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Runner{
		config:   config,
		progress: NewProgress(config.StepNames),
		printer:  NewPrinter(config.Output),
	}
}

// Progress exposes the step tracker
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run prints the header, executes op and prints the result
func (r *Runner) Run(op Operation) ([]Param, error) {
	start := time.Now()
	r.printer.PrintHeader(r.config.Title, r.config.Command, r.config.Params)

	details, err := op(r.onStep)

	r.printer.Newline()
	r.printer.Println(r.progress.RenderBar())
	r.printer.Newline()

	if err != nil {
		r.printer.PrintError(r.config.Title+" failed", err, r.config.Troubleshooting)
		return details, err
	}

	details = append(details, Param{Key: "Duration", Value: time.Since(start).Round(time.Millisecond).String()})
	r.printer.PrintSuccess(r.config.Title+" complete", details)
	return details, nil
}

func (r *Runner) onStep(stepNumber int, status StepStatus, message string) {
	r.progress.UpdateStep(stepNumber, status, message)
	switch status {
	case StepComplete, StepFailed, StepSkipped:
		r.printer.Println(r.progress.RenderStep(stepNumber))
	}
}
