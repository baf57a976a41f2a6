package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/improv/internal/client"
	"github.com/muurk/improv/internal/protocol"
)

// Screen identifies the active wizard screen
type Screen string

const (
	ScreenDiscovery    Screen = "discovery"
	ScreenNetworks     Screen = "networks"
	ScreenPassword     Screen = "password"
	ScreenProvisioning Screen = "provisioning"
	ScreenResult       Screen = "result"
)

// DefaultTimeout bounds each device request made by the wizard
const DefaultTimeout = 30 * time.Second

// Config configures the wizard
type Config struct {
	Target  string // Connect directly, skipping discovery
	Connect Connector
	Browse  Browser
	Timeout time.Duration
}

// Result is what the wizard achieved when it exits
type Result struct {
	Target string
	SSID   string
	URL    string
}

// Model is the Bubble Tea model of the wizard
type Model struct {
	ctx  context.Context
	cfg  Config
	keys keyMap

	screen Screen
	busy   string // Non-empty while waiting on the device
	err    error

	devices  list.Model
	manual   bool
	urlInput textinput.Model

	target string
	device Device
	info   protocol.DeviceInfo

	networks list.Model
	password textinput.Model
	ssid     string
	state    protocol.State
	events   chan tea.Msg
	url      string

	spinner spinner.Model
	help    help.Model
	width   int
	height  int
}

// New creates the wizard model
func New(ctx context.Context, cfg Config) Model {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	urlInput := textinput.New()
	urlInput.Placeholder = "ws://192.168.4.1:8080/improv"
	urlInput.Width = 48

	password := textinput.New()
	password.Placeholder = "passphrase"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.Width = 48

	m := Model{
		ctx:      ctx,
		cfg:      cfg,
		keys:     newKeyMap(),
		screen:   ScreenDiscovery,
		devices:  newList("Improv devices"),
		networks: newList("Wi-Fi networks"),
		urlInput: urlInput,
		password: password,
		spinner:  s,
		help:     help.New(),
	}
	if cfg.Target != "" {
		m.busy = "Connecting to " + cfg.Target
	} else if cfg.Browse != nil {
		m.busy = "Browsing for devices"
	} else {
		m.manual = true
		m.urlInput.Focus()
	}
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 60, 14)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

// Screen returns the active screen
func (m Model) Screen() Screen { return m.screen }

// Err returns the last error shown to the user
func (m Model) Err() error { return m.err }

// Result returns what the wizard provisioned, if anything
func (m Model) Result() (Result, bool) {
	if m.screen != ScreenResult || m.err != nil {
		return Result{}, false
	}
	return Result{Target: m.target, SSID: m.ssid, URL: m.url}, true
}

// Device returns the connected device, nil before connecting
func (m Model) Device() Device { return m.device }

// Init starts either the connection to a fixed target or discovery
func (m Model) Init() tea.Cmd {
	switch {
	case m.cfg.Target != "":
		return tea.Batch(m.spinner.Tick, connectCmd(m.ctx, m.cfg.Connect, m.cfg.Target, m.cfg.Timeout))
	case m.cfg.Browse != nil:
		return tea.Batch(m.spinner.Tick, browseCmd(m.ctx, m.cfg.Browse))
	default:
		return textinput.Blink
	}
}

// Update handles all messages and routes key presses to the active screen
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.devices.SetSize(msg.Width-4, msg.Height-10)
		m.networks.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case browseDoneMsg:
		m.busy = ""
		m.err = msg.err
		items := make([]list.Item, 0, len(msg.devices))
		for _, d := range msg.devices {
			items = append(items, deviceItem{device: d})
		}
		return m, m.devices.SetItems(items)

	case connectedMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err
			m.screen = ScreenDiscovery
			return m, nil
		}
		m.err = nil
		m.target = msg.target
		m.device = msg.device
		m.info = msg.info
		m.screen = ScreenNetworks
		m.busy = "Scanning for networks"
		return m, tea.Batch(m.spinner.Tick, scanCmd(m.ctx, m.device, m.cfg.Timeout))

	case scanDoneMsg:
		m.busy = ""
		m.err = msg.err
		items := make([]list.Item, 0, len(msg.aps))
		for _, ap := range msg.aps {
			items = append(items, networkItem{ap: ap})
		}
		return m, m.networks.SetItems(items)

	case stateMsg:
		m.state = protocol.State(msg)
		return m, waitEvent(m.events)

	case provisionDoneMsg:
		m.busy = ""
		m.events = nil
		m.err = msg.err
		m.url = msg.url
		if msg.err == nil {
			m.state = protocol.StateProvisioned
		}
		m.screen = ScreenResult
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.screen {
	case ScreenDiscovery:
		return m.updateDiscovery(msg)
	case ScreenNetworks:
		return m.updateNetworks(msg)
	case ScreenPassword:
		return m.updatePassword(msg)
	case ScreenResult:
		return m.updateResult(msg)
	}
	return m, nil
}

func (m Model) updateDiscovery(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.manual {
		switch {
		case key.Matches(msg, m.keys.Select):
			target := strings.TrimSpace(m.urlInput.Value())
			if target == "" {
				return m, nil
			}
			return m.connect(target)
		case key.Matches(msg, m.keys.Back):
			if m.cfg.Browse == nil {
				return m, tea.Quit
			}
			m.manual = false
			m.urlInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.urlInput, cmd = m.urlInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Manual):
		m.manual = true
		m.err = nil
		return m, m.urlInput.Focus()
	case key.Matches(msg, m.keys.Rescan):
		if m.cfg.Browse == nil {
			return m, nil
		}
		m.busy = "Browsing for devices"
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, browseCmd(m.ctx, m.cfg.Browse))
	case key.Matches(msg, m.keys.Select):
		item, ok := m.devices.SelectedItem().(deviceItem)
		if !ok {
			return m, nil
		}
		return m.connect(item.device.URL())
	}

	var cmd tea.Cmd
	m.devices, cmd = m.devices.Update(msg)
	return m, cmd
}

func (m Model) connect(target string) (tea.Model, tea.Cmd) {
	m.closeDevice()
	m.device = nil
	m.busy = "Connecting to " + target
	m.err = nil
	return m, tea.Batch(m.spinner.Tick, connectCmd(m.ctx, m.cfg.Connect, target, m.cfg.Timeout))
}

func (m Model) updateNetworks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.closeDevice()
		m.device = nil
		m.screen = ScreenDiscovery
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.Rescan):
		m.busy = "Scanning for networks"
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, scanCmd(m.ctx, m.device, m.cfg.Timeout))
	case key.Matches(msg, m.keys.Select):
		item, ok := m.networks.SelectedItem().(networkItem)
		if !ok {
			return m, nil
		}
		m.ssid = item.ap.SSID
		m.err = nil
		if !item.ap.AuthRequired {
			return m.provision("")
		}
		m.screen = ScreenPassword
		m.password.Reset()
		return m, m.password.Focus()
	}

	var cmd tea.Cmd
	m.networks, cmd = m.networks.Update(msg)
	return m, cmd
}

func (m Model) updatePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		m.password.Blur()
		return m.provision(m.password.Value())
	case key.Matches(msg, m.keys.Back):
		m.password.Blur()
		m.screen = ScreenNetworks
		return m, nil
	}
	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m Model) provision(password string) (tea.Model, tea.Cmd) {
	m.screen = ScreenProvisioning
	m.busy = "Provisioning " + m.ssid
	m.state = protocol.StateProvisioning
	m.events = make(chan tea.Msg, 8)
	return m, tea.Batch(
		m.spinner.Tick,
		provisionCmd(m.ctx, m.device, m.cfg.Timeout, m.ssid, password, m.events),
		waitEvent(m.events),
	)
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case m.err != nil && key.Matches(msg, m.keys.Retry):
		m.screen = ScreenPassword
		m.err = nil
		return m, m.password.Focus()
	case m.err != nil && key.Matches(msg, m.keys.Back):
		m.screen = ScreenNetworks
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m Model) closeDevice() {
	if m.device != nil {
		_ = m.device.Close()
	}
}

// View renders the current screen
func (m Model) View() string {
	return renderContainer(m.subtitle(), m.content(), m.help.View(m.helpFor()))
}

func (m Model) subtitle() string {
	if m.device == nil {
		return "Provision Wi-Fi credentials over Improv"
	}
	return fmt.Sprintf("%s • %s %s • %s", m.info.DeviceName, m.info.FirmwareName, m.info.FirmwareVersion, m.target)
}

func (m Model) content() string {
	var b strings.Builder

	if m.err != nil && m.screen != ScreenResult {
		b.WriteString(errorBoxStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n\n")
	}
	if m.busy != "" {
		b.WriteString(m.spinner.View() + " " + m.busy)
		if m.screen == ScreenProvisioning {
			b.WriteString("\n\nDevice state: " + m.state.String())
		}
		return b.String()
	}

	switch m.screen {
	case ScreenDiscovery:
		if m.manual {
			b.WriteString("Improv endpoint URL:\n\n")
			b.WriteString(m.urlInput.View())
			break
		}
		if len(m.devices.Items()) == 0 {
			b.WriteString("No devices found. Press r to browse again or m to enter a URL.")
			break
		}
		b.WriteString(m.devices.View())

	case ScreenNetworks:
		if len(m.networks.Items()) == 0 {
			b.WriteString("The device found no networks. Press r to scan again.")
			break
		}
		b.WriteString(m.networks.View())

	case ScreenPassword:
		fmt.Fprintf(&b, "Password for %q:\n\n", m.ssid)
		b.WriteString(m.password.View())

	case ScreenResult:
		b.WriteString(m.resultView())
	}
	return b.String()
}

func (m Model) resultView() string {
	if m.err != nil {
		msg := "Provisioning " + m.ssid + " failed: " + m.err.Error()
		if isUnableToConnect(m.err) {
			msg += "\n\nCheck the password and that the device is in range."
		}
		return errorBoxStyle.Render(msg)
	}

	lines := []string{"Connected to " + m.ssid}
	if m.url != "" {
		lines = append(lines, "", "Device URL: "+m.url)
	}
	return successBoxStyle.Render(strings.Join(lines, "\n"))
}

func isUnableToConnect(err error) bool {
	var de *client.DeviceError
	return errors.As(err, &de) && de.Code == protocol.ErrorUnableToConnect
}

// Run runs the wizard on the terminal until the user quits
func Run(ctx context.Context, cfg Config) (Result, error) {
	p := tea.NewProgram(New(ctx, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.closeDevice()
		if err != nil {
			return Result{}, err
		}
		if res, ok := m.Result(); ok {
			return res, nil
		}
		return Result{}, m.Err()
	}
	return Result{}, err
}
