package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeInto(f authForm, text string) authForm {
	for _, r := range text {
		f, _ = f.Update(keyPress(string(r)))
	}
	return f
}

func TestAuthFormFields(t *testing.T) {
	assert.Equal(t, []authField{fieldUsername, fieldPassword}, newAuthForm(authLogin).fields())
	assert.Equal(t, []authField{fieldUsername, fieldEmail, fieldPassword}, newAuthForm(authSignup).fields())
}

func TestAuthFormTabCycles(t *testing.T) {
	f := newAuthForm(authSignup)
	f, _ = f.Update(keyPress("tab"))
	assert.Equal(t, fieldEmail, f.focus)
	f, _ = f.Update(keyPress("tab"))
	assert.Equal(t, fieldPassword, f.focus)
	f, _ = f.Update(keyPress("tab"))
	assert.Equal(t, fieldUsername, f.focus)
	f, _ = f.Update(keyPress("shift+tab"))
	assert.Equal(t, fieldPassword, f.focus)
}

func TestAuthFormLoginSkipsEmail(t *testing.T) {
	f := newAuthForm(authLogin)
	f, _ = f.Update(keyPress("tab"))
	assert.Equal(t, fieldPassword, f.focus)
}

func TestAuthFormModeToggle(t *testing.T) {
	f := newAuthForm(authLogin)
	f.focus = fieldPassword
	f.err = "invalid username or password"

	f, submit := f.Update(keyPress("ctrl+t"))
	assert.False(t, submit)
	assert.Equal(t, authSignup, f.mode)
	assert.Equal(t, fieldUsername, f.focus)
	assert.Empty(t, f.err)

	f, _ = f.Update(keyPress("ctrl+t"))
	assert.Equal(t, authLogin, f.mode)
}

func TestAuthFormTyping(t *testing.T) {
	f := typeInto(newAuthForm(authLogin), "jpx")
	f, _ = f.Update(keyPress("backspace"))
	f, _ = f.Update(keyPress("tab"))
	f = typeInto(f, "pw")

	assert.Equal(t, "jp", f.username)
	assert.Equal(t, "pw", f.password)
	assert.Empty(t, f.email)

	_, submit := f.Update(keyPress("enter"))
	assert.True(t, submit)
}

func TestAuthFormValidate(t *testing.T) {
	tests := []struct {
		name      string
		form      authForm
		wantErr   string
		wantFocus authField
	}{
		{
			name:      "missing username",
			form:      authForm{mode: authLogin, password: "pw", focus: fieldPassword},
			wantErr:   "username is required",
			wantFocus: fieldUsername,
		},
		{
			name:      "blank username",
			form:      authForm{mode: authLogin, username: "   ", password: "pw"},
			wantErr:   "username is required",
			wantFocus: fieldUsername,
		},
		{
			name:      "missing password",
			form:      authForm{mode: authLogin, username: "jp"},
			wantErr:   "password is required",
			wantFocus: fieldPassword,
		},
		{
			name:      "signup bad email",
			form:      authForm{mode: authSignup, username: "jp", email: "jp.example.com", password: "pw"},
			wantErr:   "a valid email is required",
			wantFocus: fieldEmail,
		},
		{
			name: "login ignores email",
			form: authForm{mode: authLogin, username: "jp", password: "pw"},
		},
		{
			name: "valid signup",
			form: authForm{mode: authSignup, username: "jp", email: "jp@example.com", password: "pw"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := tc.form.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantErr)
			assert.Equal(t, tc.wantFocus, f.focus)
		})
	}
}

func TestAuthFormViewMasksPassword(t *testing.T) {
	f := authForm{mode: authLogin, username: "jp", password: "hunter2"}
	view := f.View()
	assert.NotContains(t, view, "hunter2")
	assert.Contains(t, view, strings.Repeat("•", 7))
	assert.Contains(t, view, "LOG IN")
	assert.Contains(t, view, "ctrl+t to sign up")
}

func TestAuthFormViewStates(t *testing.T) {
	f := authForm{mode: authSignup, busy: true}
	assert.Contains(t, f.View(), "sign up…")

	f = authForm{mode: authLogin, err: "session expired, log in again"}
	assert.Contains(t, f.View(), "session expired, log in again")
}
