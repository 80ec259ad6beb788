package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/naveenspark/watchlist/internal/watchlist"
	"github.com/naveenspark/watchlist/pkg/domain"
)

// bulkLimit caps concurrent requests for toggle and rm.
const bulkLimit = 4

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Show your watchlist",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON"},
			&cli.BoolFlag{Name: "pretty", Usage: "indent JSON output"},
			&cli.BoolFlag{Name: "unwatched", Usage: "only movies not yet watched"},
			&cli.BoolFlag{Name: "long", Aliases: []string{"l"}, Usage: "show each movie's description"},
		},
		Action: r.List,
	}
}

func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a movie by title",
		ArgsUsage: "<title>",
		Action:    r.Add,
	}
}

func toggleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Flip the watched flag of one or more movies",
		ArgsUsage: "<id>...",
		Action:    r.Toggle,
	}
}

func removeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove"},
		Usage:     "Remove one or more movies",
		ArgsUsage: "<id>...",
		Action:    r.Remove,
	}
}

// loadModel restores the session and fetches the watchlist into a model.
func (r *Runner) loadModel(ctx context.Context, cmd *cli.Command) (*watchlist.Model, error) {
	sess, err := r.requireSession(cmd)
	if err != nil {
		return nil, err
	}
	m := r.newModel(sess)
	if err := m.Load(ctx); err != nil {
		return nil, r.check(err)
	}
	return m, nil
}

// List prints the watchlist in server order.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	m, err := r.loadModel(ctx, cmd)
	if err != nil {
		return err
	}

	entries := m.Entries()
	if cmd.Bool("unwatched") {
		entries = slices.DeleteFunc(entries, func(mv domain.Movie) bool { return mv.Watched })
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}
	if len(entries) == 0 {
		return r.writePlain("no movies\n")
	}

	idWidth := 2
	for _, mv := range entries {
		idWidth = max(idWidth, len(mv.ID))
	}
	for _, mv := range entries {
		check := "[ ]"
		if mv.Watched {
			check = "[x]"
		}
		if err := r.writePlain("%s %-*s  %s\n", check, idWidth, mv.ID, mv.Title); err != nil {
			return err
		}
		if cmd.Bool("long") {
			if err := r.writePlain("    %*s  %s\n", idWidth, "", mv.DescriptionOrDefault()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Add resolves a title on the server and stores it.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if title == "" {
		return fmt.Errorf("%w: title", errMissingArgument)
	}

	sess, err := r.requireSession(cmd)
	if err != nil {
		return err
	}
	mv, err := r.newModel(sess).Add(ctx, title)
	if err != nil {
		return r.check(err)
	}
	r.logger.Info("movie added", "id", mv.ID, "title", mv.Title)
	return r.writePlain("✓ added %q (id %s)\n", mv.Title, mv.ID)
}

// Toggle flips the watched flag of every id given, concurrently.
func (r *Runner) Toggle(ctx context.Context, cmd *cli.Command) error {
	return r.bulk(ctx, cmd, "toggle", func(ctx context.Context, m *watchlist.Model, id string) (string, error) {
		mv, err := m.ToggleWatched(ctx, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✓ %q marked %s", mv.Title, mv.StatusLabel()), nil
	})
}

// Remove deletes every id given, concurrently.
func (r *Runner) Remove(ctx context.Context, cmd *cli.Command) error {
	return r.bulk(ctx, cmd, "rm", func(ctx context.Context, m *watchlist.Model, id string) (string, error) {
		mv, _ := m.Get(id)
		if err := m.Remove(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("✓ removed %q", mv.Title), nil
	})
}

type bulkOp func(ctx context.Context, m *watchlist.Model, id string) (string, error)

// bulk runs op for each distinct id argument through one model. Results are
// printed in argument order once every operation has finished.
func (r *Runner) bulk(ctx context.Context, cmd *cli.Command, verb string, op bulkOp) error {
	var ids []string
	for _, id := range cmd.Args().Slice() {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: id", errMissingArgument)
	}

	m, err := r.loadModel(ctx, cmd)
	if err != nil {
		return err
	}

	lines := make([]string, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(bulkLimit)
	for i, id := range ids {
		g.Go(func() error {
			lines[i], errs[i] = op(ctx, m, id)
			return errs[i]
		})
	}
	_ = g.Wait() // per-id errors are reported below

	failed := 0
	for i, id := range ids {
		if errs[i] != nil {
			failed++
			fmt.Fprintf(r.stderr, "✗ %s: %v\n", id, errs[i]) //nolint:errcheck
			continue
		}
		if err := r.writePlain("%s\n", lines[i]); err != nil {
			return err
		}
	}

	if err := r.check(errors.Join(errs...)); errors.Is(err, errSessionExpired) {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%s: %d of %d failed", verb, failed, len(ids))
	}
	return nil
}
