package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type authMode int

const (
	authLogin authMode = iota
	authSignup
)

func (m authMode) String() string {
	if m == authSignup {
		return "sign up"
	}
	return "log in"
}

type authField int

const (
	fieldUsername authField = iota
	fieldEmail
	fieldPassword
)

// authForm is the login / signup form. It only edits text; submitting is
// handled by App.
type authForm struct {
	mode     authMode
	focus    authField
	username string
	email    string
	password string
	busy     bool // submit in flight
	err      string
}

func newAuthForm(mode authMode) authForm {
	return authForm{mode: mode}
}

// fields returns the inputs shown in the current mode, in tab order.
func (f authForm) fields() []authField {
	if f.mode == authSignup {
		return []authField{fieldUsername, fieldEmail, fieldPassword}
	}
	return []authField{fieldUsername, fieldPassword}
}

// Update edits the form. submit is true when the user asked to send it.
func (f authForm) Update(msg tea.KeyMsg) (form authForm, submit bool) {
	switch msg.String() {
	case "ctrl+t":
		if f.mode == authLogin {
			f.mode = authSignup
		} else {
			f.mode = authLogin
		}
		f.focus = fieldUsername
		f.err = ""
	case "tab", "down":
		f.focus = f.step(1)
	case "shift+tab", "up":
		f.focus = f.step(-1)
	case "enter":
		return f, true
	default:
		switch f.focus {
		case fieldUsername:
			f.username = editRune(f.username, msg.String())
		case fieldEmail:
			f.email = editRune(f.email, msg.String())
		case fieldPassword:
			f.password = editRune(f.password, msg.String())
		}
	}
	return f, false
}

func (f authForm) step(delta int) authField {
	fields := f.fields()
	for i, field := range fields {
		if field == f.focus {
			return fields[(i+delta+len(fields))%len(fields)]
		}
	}
	return fields[0]
}

// validate reports the first missing or malformed field and focuses it.
func (f authForm) validate() (authForm, error) {
	switch {
	case strings.TrimSpace(f.username) == "":
		f.focus = fieldUsername
		return f, errors.New("username is required")
	case f.mode == authSignup && !strings.Contains(f.email, "@"):
		f.focus = fieldEmail
		return f, errors.New("a valid email is required")
	case f.password == "":
		f.focus = fieldPassword
		return f, errors.New("password is required")
	}
	return f, nil
}

func (f authForm) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", selectedStyle.Render(strings.ToUpper(f.mode.String())))
	for _, field := range f.fields() {
		var label, value, placeholder string
		switch field {
		case fieldUsername:
			label, value, placeholder = "username", f.username, "jp"
		case fieldEmail:
			label, value, placeholder = "email", f.email, "you@example.com"
		case fieldPassword:
			label, value, placeholder = "password", strings.Repeat("•", len([]rune(f.password))), ""
		}
		fmt.Fprintf(&b, "%s%s\n", formLabelStyle.Render(label), renderInput("", value, placeholder, field == f.focus))
	}

	b.WriteString("\n")
	switch {
	case f.busy:
		b.WriteString(noticeStyle.Render(f.mode.String() + "…"))
	case f.err != "":
		b.WriteString(errorStyle.Render(f.err))
	default:
		other := authSignup
		if f.mode == authSignup {
			other = authLogin
		}
		b.WriteString(metaStyle.Render("ctrl+t to " + other.String()))
	}

	return formBoxStyle.Render(b.String())
}
