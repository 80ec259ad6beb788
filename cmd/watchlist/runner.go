package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/naveenspark/watchlist/internal/config"
	"github.com/naveenspark/watchlist/internal/logging"
	"github.com/naveenspark/watchlist/internal/session"
	"github.com/naveenspark/watchlist/internal/watchlist"
	"github.com/naveenspark/watchlist/pkg/client"
	"github.com/naveenspark/watchlist/pkg/domain"
)

var (
	errNotLoggedIn     = errors.New("not logged in, run: watchlist login")
	errSessionExpired  = errors.New("session expired, run: watchlist login")
	errMissingArgument = errors.New("missing argument")
)

// Runner holds the dependencies shared by every command. They are built
// lazily by connect so that commands like version never touch the disk.
type Runner struct {
	cfg    *config.Config
	logger *log.Logger
	store  *session.Store
	api    *client.Client

	output  io.Writer
	stderr  io.Writer
	input   *bufio.Reader
	closers []io.Closer
}

// RunnerOpts contains the I/O streams a Runner uses. Nil fields default to the
// process streams.
type RunnerOpts struct {
	Output io.Writer
	Stderr io.Writer
	Input  io.Reader
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	return &Runner{
		output: opts.Output,
		stderr: opts.Stderr,
		input:  bufio.NewReader(opts.Input),
	}
}

// Command builds the root command. Running it without a subcommand starts the
// interactive UI.
func (r *Runner) Command() *cli.Command {
	return &cli.Command{
		Name:      "watchlist",
		Usage:     "Keep track of the movies you mean to watch",
		Version:   version,
		Writer:    r.output,
		ErrWriter: r.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "backend root, overrides api.url",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Action:   r.TUI,
		After:    r.after,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		loginCommand, signupCommand, logoutCommand, whoamiCommand,
		listCommand, addCommand, toggleCommand, removeCommand,
		configCommand, versionCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) loadConfig(cmd *cli.Command) (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if u := cmd.String("api-url"); u != "" {
		cfg.API.URL = u
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r.cfg = cfg
	return cfg, nil
}

// connect loads configuration and builds the logger, session store and API
// client. With toFile set the logger writes to the rotating log file instead
// of stderr, which the TUI needs because it owns the terminal.
func (r *Runner) connect(cmd *cli.Command, toFile bool) error {
	if r.api != nil {
		return nil
	}
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if toFile {
		path, err := cfg.LogFile()
		if err != nil {
			return err
		}
		logger, closer, err := logging.NewFile(logging.FileOptions{
			Path:       path,
			Level:      cfg.Logging.Level,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return err
		}
		r.logger = logger
		r.closers = append(r.closers, closer)
	} else {
		r.logger = logging.New(r.stderr, cfg.Logging.Level)
	}

	dir, err := cfg.SessionDir()
	if err != nil {
		return err
	}
	r.store = session.New(dir, r.logger)

	r.api = client.New(cfg.API.URL, r.store,
		client.WithTimeout(cfg.API.Timeout.Duration),
		client.WithRateLimit(rate.Limit(cfg.API.RateLimit), cfg.API.Burst),
		client.WithLogger(r.logger),
	)
	r.logger.Debug("connected", "api", cfg.API.URL, "session_dir", r.store.Dir())
	return nil
}

// requireSession restores the persisted session and fails when there is none.
func (r *Runner) requireSession(cmd *cli.Command) (domain.Session, error) {
	if err := r.connect(cmd, false); err != nil {
		return domain.Session{}, err
	}
	sess := r.store.Restore()
	if !sess.Authenticated() {
		return sess, errNotLoggedIn
	}
	return sess, nil
}

// newModel returns a watchlist model bound to the restored session.
func (r *Runner) newModel(sess domain.Session) *watchlist.Model {
	m := watchlist.New(r.api, r.logger)
	m.Follow(r.store)
	m.Reset(sess.Generation)
	return m
}

// check turns a rejected credential into a logout.
func (r *Runner) check(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrUnauthorized) {
		if clearErr := r.store.Clear(); clearErr != nil {
			r.logger.Warn("clear expired session", "err", clearErr)
		}
		return errSessionExpired
	}
	return err
}

func (r *Runner) after(_ context.Context, _ *cli.Command) error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// prompt reads one line from the input stream. An empty answer is an error.
func (r *Runner) prompt(label string) (string, error) {
	fmt.Fprintf(r.stderr, "%s: ", label) //nolint:errcheck
	line, err := r.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%w: %s", errMissingArgument, label)
	}
	return line, nil
}

// flagOrPrompt returns the named flag, asking for it when unset.
func (r *Runner) flagOrPrompt(cmd *cli.Command, name string) (string, error) {
	if v := strings.TrimSpace(cmd.String(name)); v != "" {
		return v, nil
	}
	return r.prompt(name)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
