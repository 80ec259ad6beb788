package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/naveenspark/watchlist/internal/browser"
	"github.com/naveenspark/watchlist/internal/logging"
	"github.com/naveenspark/watchlist/internal/session"
	"github.com/naveenspark/watchlist/internal/watchlist"
	"github.com/naveenspark/watchlist/pkg/client"
	"github.com/naveenspark/watchlist/pkg/domain"
)

type state int

const (
	stateLoading state = iota
	stateError
	stateContent
)

type focus int

const (
	focusList focus = iota
	focusAdd
	focusAuth
)

// Authenticator issues credentials. *client.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
	Signup(ctx context.Context, req client.SignupRequest) error
}

type sessionRestoredMsg struct {
	session domain.Session
}

type loadedMsg struct{ err error }

type addedMsg struct {
	title string
	movie domain.Movie
	err   error
}

type toggledMsg struct {
	movie domain.Movie
	err   error
}

type removedMsg struct {
	title string
	err   error
}

type loginResultMsg struct {
	session domain.Session
	err     error
}

type signupResultMsg struct {
	username string
	err      error
}

type copyResultMsg struct{ err error }
type openResultMsg struct{ err error }

// App is the root Bubbletea model. It renders the watchlist and turns key
// presses into watchlist operations; all state changes go through the model
// and the session store.
type App struct {
	store  *session.Store
	auth   Authenticator
	model  *watchlist.Model
	logger *log.Logger

	keys      keyMap
	formKeys  formKeyMap
	inputKeys inputKeyMap
	help      help.Model

	state  state
	errMsg string // load failure shown in stateError
	notice string // one-line feedback under the list
	focus  focus
	cursor int
	form   authForm
	title  string // add input
	adding bool   // add request in flight

	width  int
	height int
	frame  int // logo shimmer animation frame
}

// NewApp creates the TUI. model must follow store (see watchlist.Model.Follow)
// so that logging in or out empties it.
func NewApp(store *session.Store, auth Authenticator, model *watchlist.Model, logger *log.Logger) App {
	if logger == nil {
		logger = logging.Discard()
	}
	return App{
		store:     store,
		auth:      auth,
		model:     model,
		logger:    logger,
		keys:      newKeyMap(),
		formKeys:  newFormKeyMap(),
		inputKeys: newInputKeyMap(),
		help:      newHelp(),
		state:     stateLoading,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.restore(), shimmerTickCmd())
}

func (a App) restore() tea.Cmd {
	store := a.store
	return func() tea.Msg {
		return sessionRestoredMsg{session: store.Restore()}
	}
}

func (a App) load() tea.Cmd {
	m := a.model
	return func() tea.Msg {
		return loadedMsg{err: m.Load(context.Background())}
	}
}

func (a App) add(title string) tea.Cmd {
	m := a.model
	return func() tea.Msg {
		movie, err := m.Add(context.Background(), title)
		return addedMsg{title: title, movie: movie, err: err}
	}
}

func (a App) toggle(id string) tea.Cmd {
	m := a.model
	return func() tea.Msg {
		movie, err := m.ToggleWatched(context.Background(), id)
		return toggledMsg{movie: movie, err: err}
	}
}

func (a App) remove(id, title string) tea.Cmd {
	m := a.model
	return func() tea.Msg {
		return removedMsg{title: title, err: m.Remove(context.Background(), id)}
	}
}

func (a App) login(username, password string) tea.Cmd {
	auth, store := a.auth, a.store
	return func() tea.Msg {
		resp, err := auth.Login(context.Background(), username, password)
		if err != nil {
			return loginResultMsg{err: err}
		}
		if resp.User.Username == "" {
			resp.User.Username = username
		}
		sess, err := store.Establish(resp.User, resp.AccessToken)
		return loginResultMsg{session: sess, err: err}
	}
}

func (a App) signup(req client.SignupRequest) tea.Cmd {
	auth := a.auth
	return func() tea.Msg {
		return signupResultMsg{username: req.Username, err: auth.Signup(context.Background(), req)}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case sessionRestoredMsg:
		if msg.session.Authenticated() {
			a.state = stateLoading
			return a, a.load()
		}
		a.state = stateContent
		a.openAuth(authLogin)
		return a, nil

	case loadedMsg:
		if msg.err != nil {
			return a.fail("load", msg.err)
		}
		a.state = stateContent
		a.errMsg = ""
		a.clampCursor()
		return a, nil

	case addedMsg:
		// A result from a previous session must not release the current add.
		if errors.Is(msg.err, watchlist.ErrStale) {
			return a.fail("add", msg.err)
		}
		a.adding = false
		if msg.err != nil {
			return a.fail("add", msg.err)
		}
		a.focus = focusList
		a.title = ""
		a.notice = fmt.Sprintf("added %q", msg.movie.Title)
		for i, mv := range a.model.Entries() {
			if mv.ID == msg.movie.ID {
				a.cursor = i
			}
		}
		return a, nil

	case toggledMsg:
		if msg.err != nil {
			return a.fail("toggle", msg.err)
		}
		a.notice = fmt.Sprintf("%q marked %s", msg.movie.Title, msg.movie.StatusLabel())
		return a, nil

	case removedMsg:
		if msg.err != nil {
			return a.fail("delete", msg.err)
		}
		a.notice = fmt.Sprintf("removed %q", msg.title)
		a.clampCursor()
		return a, nil

	case loginResultMsg:
		a.form.busy = false
		if msg.err != nil {
			a.logger.Warn("login failed", "err", msg.err)
			if errors.Is(msg.err, client.ErrInvalidCredentials) {
				a.form.err = "invalid username or password"
			} else {
				a.form.err = describe(msg.err)
			}
			return a, nil
		}
		a.focus = focusList
		a.form = newAuthForm(authLogin)
		a.cursor = 0
		a.notice = "logged in as " + msg.session.User.Username
		a.state = stateLoading
		return a, a.load()

	case signupResultMsg:
		a.form.busy = false
		if msg.err != nil {
			a.logger.Warn("signup failed", "err", msg.err)
			if errors.Is(msg.err, client.ErrConflict) {
				a.form.err = "username or email already registered"
			} else {
				a.form.err = describe(msg.err)
			}
			return a, nil
		}
		a.form = newAuthForm(authLogin)
		a.form.username = msg.username
		a.form.focus = fieldPassword
		a.notice = "account created, log in to continue"
		return a, nil

	case copyResultMsg:
		if msg.err != nil {
			a.notice = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			a.notice = "copied!"
		}
		return a, nil

	case openResultMsg:
		if msg.err != nil {
			a.notice = fmt.Sprintf("open failed: %v", msg.err)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		a.notice = ""
		switch a.focus {
		case focusAuth:
			return a.updateAuth(msg)
		case focusAdd:
			return a.updateAdd(msg)
		default:
			return a.updateList(msg)
		}
	}
	return a, nil
}

func (a App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	case key.Matches(msg, a.keys.auth):
		if a.store.Current().Authenticated() {
			return a.logout()
		}
		a.openAuth(authLogin)
		return a, nil
	}

	if a.state == stateLoading {
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.down):
		if a.cursor < a.model.Len()-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.copy):
		if mv, ok := a.selected(); ok {
			title := mv.Title
			return a, func() tea.Msg {
				return copyResultMsg{err: clipboard.WriteAll(title)}
			}
		}
	case key.Matches(msg, a.keys.open):
		if mv, ok := a.selected(); ok {
			if mv.ImageURL == "" {
				a.notice = fmt.Sprintf("no poster for %q", mv.Title)
				return a, nil
			}
			url := mv.ImageURL
			return a, func() tea.Msg {
				return openResultMsg{err: browser.Open(url)}
			}
		}
	case key.Matches(msg, a.keys.reload, a.keys.add, a.keys.toggle, a.keys.remove):
		if !a.store.Current().Authenticated() {
			a.openAuth(authLogin)
			a.notice = "log in first"
			return a, nil
		}
		return a.updateAction(msg)
	}
	return a, nil
}

// updateAction handles the keys that call the gateway.
func (a App) updateAction(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.reload) {
		a.state = stateLoading
		return a, a.load()
	}
	if key.Matches(msg, a.keys.add) {
		a.focus = focusAdd
		if !a.adding {
			a.title = ""
		}
		return a, nil
	}

	mv, ok := a.selected()
	if !ok {
		return a, nil
	}
	if a.model.Pending(mv.ID) {
		a.notice = fmt.Sprintf("%q is busy", mv.Title)
		return a, nil
	}
	if key.Matches(msg, a.keys.toggle) {
		return a, a.toggle(mv.ID)
	}
	return a, a.remove(mv.ID, mv.Title)
}

func (a App) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.focus = focusList
		return a, nil
	case "enter":
		if a.adding {
			a.notice = "still adding…"
			return a, nil
		}
		title := strings.TrimSpace(a.title)
		if title == "" {
			a.notice = "title is required"
			return a, nil
		}
		a.adding = true
		return a, a.add(title)
	default:
		if !a.adding {
			a.title = editRune(a.title, msg.String())
		}
	}
	return a, nil
}

func (a App) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		a.focus = focusList
		return a, nil
	}

	var submit bool
	a.form, submit = a.form.Update(msg)
	if !submit || a.form.busy {
		return a, nil
	}

	form, err := a.form.validate()
	a.form = form
	if err != nil {
		a.form.err = err.Error()
		return a, nil
	}
	a.form.err = ""
	a.form.busy = true
	username := strings.TrimSpace(a.form.username)
	if a.form.mode == authSignup {
		return a, a.signup(client.SignupRequest{
			Username: username,
			Email:    strings.TrimSpace(a.form.email),
			Password: a.form.password,
		})
	}
	return a, a.login(username, a.form.password)
}

// fail routes an operation error. Unauthorized ends the session; stale
// results are dropped.
func (a App) fail(op string, err error) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(err, watchlist.ErrStale):
		a.logger.Debug("dropped stale result", "op", op)
		return a, nil
	case errors.Is(err, client.ErrUnauthorized):
		a.logger.Warn("credential rejected, logging out", "op", op, "err", err)
		a.forceLogout()
		return a, nil
	case errors.Is(err, watchlist.ErrBusy):
		a.notice = op + " already in progress"
		return a, nil
	}

	a.logger.Error(op+" failed", "err", err)
	if op == "load" {
		a.state = stateError
		a.errMsg = describe(err)
		return a, nil
	}
	a.notice = fmt.Sprintf("%s failed: %s", op, describe(err))
	return a, nil
}

// forceLogout drops the session after the server rejected the credential and
// leaves the app logged out with the login prompt open.
func (a *App) forceLogout() {
	if err := a.store.Clear(); err != nil {
		a.logger.Warn("clear session", "err", err)
	}
	a.state = stateContent
	a.errMsg = ""
	a.adding = false
	a.title = ""
	a.cursor = 0
	a.openAuth(authLogin)
	a.form.err = "session expired, log in again"
}

func (a App) logout() (tea.Model, tea.Cmd) {
	if err := a.store.Clear(); err != nil {
		a.logger.Warn("clear session", "err", err)
		a.notice = fmt.Sprintf("logout: %v", err)
	} else {
		a.notice = "logged out"
	}
	a.state = stateContent
	a.errMsg = ""
	a.adding = false
	a.cursor = 0
	return a, nil
}

func (a *App) openAuth(mode authMode) {
	if a.focus != focusAuth || a.form.mode != mode {
		a.form = newAuthForm(mode)
	}
	a.focus = focusAuth
}

func (a App) selected() (domain.Movie, bool) {
	entries := a.model.Entries()
	if a.cursor < 0 || a.cursor >= len(entries) {
		return domain.Movie{}, false
	}
	return entries[a.cursor], true
}

func (a *App) clampCursor() {
	n := a.model.Len()
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// describe turns a gateway error into a short user-facing message.
func describe(err error) string {
	var ce *client.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	switch {
	case ce.Kind == client.KindUnavailable:
		return "server unreachable"
	case ce.Message != "":
		return ce.Message
	default:
		return ce.Kind.String()
	}
}

func (a App) View() string {
	sess := a.store.Current()

	header := center(renderShimmerLogo("WATCHLIST", a.frame), a.width) + "\n"
	header += center(a.statusLine(sess), a.width)

	var body string
	switch {
	case a.focus == focusAuth:
		body = a.form.View()
	case a.state == stateLoading:
		body = dimStyle.Render("  loading watchlist…")
	case a.state == stateError:
		body = errorStyle.Render("  could not load watchlist: "+a.errMsg) + "\n" +
			metaStyle.Render("  press r to retry")
	default:
		body = a.listView(sess)
	}

	var inputBar string
	if a.focus == focusAdd {
		inputBar = " " + renderInput("add › ", a.title, "movie title", !a.adding)
		if a.adding {
			inputBar += " " + noticeStyle.Render("adding…")
		}
	}

	var notice string
	if a.notice != "" {
		notice = " " + noticeStyle.Render(a.notice)
	}

	var helpView string
	switch a.focus {
	case focusAuth:
		helpView = a.help.View(a.formKeys)
	case focusAdd:
		helpView = a.help.View(a.inputKeys)
	default:
		helpView = a.help.View(a.keys.withSession(sess.Authenticated()))
	}
	helpView = " " + helpView

	// Chrome: header(2) + gap(1) + input(1) + notice(1) + help
	chrome := 5 + strings.Count(helpView, "\n") + 1
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n\n%s\n%s\n%s\n%s", header, body, inputBar, notice, helpView)
}

func (a App) statusLine(sess domain.Session) string {
	if !sess.Authenticated() {
		return metaStyle.Render("not signed in")
	}
	entries := a.model.Entries()
	watched := 0
	for _, mv := range entries {
		if mv.Watched {
			watched++
		}
	}
	return metaStyle.Render(fmt.Sprintf("%s . %s . %d watched",
		sess.User.Username, plural(len(entries), "movie"), watched))
}
