package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Next      key.Binding
	Prev      key.Binding
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	Submit    key.Binding
	Save      key.Binding
	Favorites key.Binding
	Back      key.Binding
	Delete    key.Binding
	Carousel  key.Binding
	Slide     key.Binding
	Reset     key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Next:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Prev:      key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "change")),
	Right:     key.NewBinding(key.WithKeys("right", "l")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "move")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
	Save:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Favorites: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorites")),
	Back:      key.NewBinding(key.WithKeys("b", "esc"), key.WithHelp("b", "search")),
	Delete:    key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
	Carousel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "carousel")),
	Slide:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next slide")),
	Reset:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
}

func (k keyMap) searchHelp() []key.Binding {
	return []key.Binding{k.Next, k.Left, k.Submit, k.Up, k.Save, k.Favorites, k.Reset, k.Quit}
}

func (k keyMap) favoritesHelp() []key.Binding {
	return []key.Binding{k.Up, k.Delete, k.Carousel, k.Slide, k.Back, k.Reset, k.Quit}
}
