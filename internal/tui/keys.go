package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the watchlist view.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	add    key.Binding
	toggle key.Binding
	remove key.Binding
	reload key.Binding
	copy   key.Binding
	open   key.Binding
	auth   key.Binding
	help   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		toggle: key.NewBinding(key.WithKeys("w", " ", "space"), key.WithHelp("w/space", "watched")),
		remove: key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		copy:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy title")),
		open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "poster")),
		auth:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "login")),
		help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// withSession relabels the auth binding for the current session state.
func (k keyMap) withSession(authenticated bool) keyMap {
	if authenticated {
		k.auth.SetHelp("L", "logout")
	} else {
		k.auth.SetHelp("L", "login")
	}
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.toggle, k.remove, k.auth, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.reload},
		{k.add, k.toggle, k.remove},
		{k.copy, k.open},
		{k.auth, k.help, k.quit},
	}
}

// formKeyMap is shown while the auth form has focus.
type formKeyMap struct {
	next   key.Binding
	mode   key.Binding
	submit key.Binding
	cancel key.Binding
}

func newFormKeyMap() formKeyMap {
	return formKeyMap{
		next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		mode:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "login/signup")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.mode, k.submit, k.cancel}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// inputKeyMap is shown while the add input has focus.
type inputKeyMap struct {
	submit key.Binding
	cancel key.Binding
}

func (k inputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.submit, k.cancel}
}

func (k inputKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newInputKeyMap() inputKeyMap {
	return inputKeyMap{
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add")),
		cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}
