package wizard

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding; each screen shows the subset it handles
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Rescan key.Binding
	Manual key.Binding
	Back   key.Binding
	Retry  key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter URL")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// screenKeys adapts a list of bindings to help.KeyMap
type screenKeys []key.Binding

func (k screenKeys) ShortHelp() []key.Binding { return k }

func (k screenKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k} }

// helpFor returns the bindings active on the model's current screen
func (m Model) helpFor() screenKeys {
	k := m.keys
	switch m.screen {
	case ScreenDiscovery:
		if m.manual {
			return screenKeys{k.Select, k.Back}
		}
		return screenKeys{k.Up, k.Down, k.Select, k.Rescan, k.Manual, k.Quit}
	case ScreenNetworks:
		return screenKeys{k.Up, k.Down, k.Select, k.Rescan, k.Back, k.Quit}
	case ScreenPassword:
		return screenKeys{k.Select, k.Back}
	case ScreenResult:
		if m.err != nil {
			return screenKeys{k.Retry, k.Back, k.Quit}
		}
		return screenKeys{k.Quit}
	default:
		return screenKeys{k.Quit}
	}
}
