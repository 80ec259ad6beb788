package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/naveenspark/watchlist/pkg/client"
)

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and remember the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "account name (prompted when unset)"},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password (prompted when unset)",
				Sources: cli.EnvVars("WATCHLIST_PASSWORD"),
			},
		},
		Action: r.Login,
	}
}

func signupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "account name (prompted when unset)"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "email address (prompted when unset)"},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password (prompted when unset)",
				Sources: cli.EnvVars("WATCHLIST_PASSWORD"),
			},
		},
		Action: r.Signup,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the stored session",
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged in account",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON"},
		},
		Action: r.Whoami,
	}
}

// Login exchanges credentials for a token and persists the session.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(cmd, false); err != nil {
		return err
	}
	username, err := r.flagOrPrompt(cmd, "username")
	if err != nil {
		return err
	}
	password, err := r.flagOrPrompt(cmd, "password")
	if err != nil {
		return err
	}

	resp, err := r.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, client.ErrInvalidCredentials) {
			return errors.New("invalid username or password")
		}
		return err
	}
	if resp.User.Username == "" {
		resp.User.Username = username
	}
	if _, err := r.store.Establish(resp.User, resp.AccessToken); err != nil {
		return err
	}
	return r.writePlain("✓ logged in as %s\n", resp.User.Username)
}

// Signup creates an account. It does not log in.
func (r *Runner) Signup(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(cmd, false); err != nil {
		return err
	}
	var req client.SignupRequest
	var err error
	if req.Username, err = r.flagOrPrompt(cmd, "username"); err != nil {
		return err
	}
	if req.Email, err = r.flagOrPrompt(cmd, "email"); err != nil {
		return err
	}
	if req.Password, err = r.flagOrPrompt(cmd, "password"); err != nil {
		return err
	}

	if err := r.api.Signup(ctx, req); err != nil {
		if errors.Is(err, client.ErrConflict) {
			return errors.New("username or email already registered")
		}
		return err
	}
	return r.writePlain("✓ account created, run: watchlist login -u %s\n", req.Username)
}

// Logout removes the stored session. It succeeds when already logged out.
func (r *Runner) Logout(_ context.Context, cmd *cli.Command) error {
	if err := r.connect(cmd, false); err != nil {
		return err
	}
	sess := r.store.Restore()
	if err := r.store.Clear(); err != nil {
		return err
	}
	if !sess.Authenticated() {
		return r.writePlain("not logged in\n")
	}
	return r.writePlain("✓ logged out %s\n", sess.User.Username)
}

// Whoami prints the stored identity, or a nudge to log in.
func (r *Runner) Whoami(_ context.Context, cmd *cli.Command) error {
	if err := r.connect(cmd, false); err != nil {
		return err
	}
	sess := r.store.Restore()
	if !sess.Authenticated() {
		printHint(r.output)
		return nil
	}
	if cmd.Bool("json") {
		return r.writeJSON(sess.User, false)
	}
	if sess.User.Email != "" {
		return r.writePlain("%s <%s>\n", sess.User.Username, sess.User.Email)
	}
	return r.writePlain("%s\n", sess.User.Username)
}
