// Package watchlist holds the local, ordered copy of the user's watchlist.
//
// Every mutation is confirm-then-apply: the gateway call happens first and the
// local sequence changes only after the server accepted it, using the entry the
// server returned. There is no speculative state to roll back.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/naveenspark/watchlist/pkg/client"
	"github.com/naveenspark/watchlist/pkg/domain"
)

var (
	// ErrBusy is returned when the same entry (or title, for adds) already
	// has an operation in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrStale is returned when the session changed while the request was in
	// flight. The response was discarded.
	ErrStale = errors.New("session changed, result discarded")
)

// Gateway is the subset of *client.Client the model needs.
type Gateway interface {
	FetchWatchlist(ctx context.Context) ([]domain.Movie, error)
	AddMovie(ctx context.Context, title string) (*domain.Movie, error)
	SetWatched(ctx context.Context, id string, watched bool) (*domain.Movie, error)
	RemoveMovie(ctx context.Context, id string) error
}

// SessionSource announces session transitions. *session.Store implements it.
type SessionSource interface {
	OnChange(fn func(domain.Session))
}

// Model is an ordered sequence of movies keyed by id. It is safe for
// concurrent use; operations on distinct entries may overlap.
type Model struct {
	gw     Gateway
	logger *log.Logger

	mu         sync.Mutex
	entries    []domain.Movie
	generation uuid.UUID
	pending    map[string]struct{} // entry ids with a toggle/remove in flight
	adding     map[string]struct{} // normalized titles with an add in flight
	loading    bool
}

// New returns an empty model bound to the anonymous generation.
func New(gw Gateway, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Model{
		gw:      gw,
		logger:  logger,
		pending: make(map[string]struct{}),
		adding:  make(map[string]struct{}),
	}
}

// Reset empties the model and stamps it with a session generation. Results of
// operations started under another generation are discarded.
func (m *Model) Reset(generation uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.generation = generation
	m.pending = make(map[string]struct{})
	m.adding = make(map[string]struct{})
	m.loading = false
}

// Follow resets m every time src establishes, restores or clears a session.
func (m *Model) Follow(src SessionSource) {
	src.OnChange(func(s domain.Session) {
		m.Reset(s.Generation)
	})
}

// Generation returns the session generation the model is bound to.
func (m *Model) Generation() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Entries returns a copy of the current sequence.
func (m *Model) Entries() []domain.Movie {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Movie, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries.
func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Get returns the entry with the given id.
func (m *Model) Get(id string) (domain.Movie, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.entries[i], true
	}
	return domain.Movie{}, false
}

// Pending reports whether id has a toggle or remove in flight.
func (m *Model) Pending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[id]
	return ok
}

// Load replaces the sequence with the server's list. Duplicate ids in the
// response keep their first occurrence.
func (m *Model) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return fmt.Errorf("watchlist.Load: %w", ErrBusy)
	}
	m.loading = true
	gen := m.generation
	m.mu.Unlock()

	movies, err := m.gw.FetchWatchlist(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		m.logger.Debug("discarding stale load", "generation", gen)
		return fmt.Errorf("watchlist.Load: %w", ErrStale)
	}
	m.loading = false
	if err != nil {
		return fmt.Errorf("watchlist.Load: %w", err)
	}

	seen := make(map[string]struct{}, len(movies))
	entries := make([]domain.Movie, 0, len(movies))
	for _, mv := range movies {
		if _, dup := seen[mv.ID]; dup {
			m.logger.Warn("duplicate id in watchlist response", "id", mv.ID)
			continue
		}
		seen[mv.ID] = struct{}{}
		entries = append(entries, mv)
	}
	m.entries = entries
	return nil
}

// Add resolves title on the server and appends the returned entry. If the
// server returns an id already present, that entry is replaced in place.
func (m *Model) Add(ctx context.Context, title string) (domain.Movie, error) {
	key := domain.NormalizeTitle(title)
	if key == "" {
		return domain.Movie{}, fmt.Errorf("watchlist.Add: %w", &client.Error{Kind: client.KindRejected, Message: "title is required"})
	}

	m.mu.Lock()
	if _, busy := m.adding[key]; busy {
		m.mu.Unlock()
		return domain.Movie{}, fmt.Errorf("watchlist.Add %q: %w", title, ErrBusy)
	}
	m.adding[key] = struct{}{}
	gen := m.generation
	m.mu.Unlock()

	created, err := m.gw.AddMovie(ctx, title)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return domain.Movie{}, fmt.Errorf("watchlist.Add %q: %w", title, ErrStale)
	}
	delete(m.adding, key)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("watchlist.Add %q: %w", title, err)
	}

	if i := m.indexOf(created.ID); i >= 0 {
		m.entries[i] = *created
	} else {
		m.entries = append(m.entries, *created)
	}
	return *created, nil
}

// ToggleWatched flips the watched flag of id on the server and stores the
// entry the server returned.
func (m *Model) ToggleWatched(ctx context.Context, id string) (domain.Movie, error) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return domain.Movie{}, fmt.Errorf("watchlist.ToggleWatched %s: %w", id, client.ErrNotFound)
	}
	if _, busy := m.pending[id]; busy {
		m.mu.Unlock()
		return domain.Movie{}, fmt.Errorf("watchlist.ToggleWatched %s: %w", id, ErrBusy)
	}
	m.pending[id] = struct{}{}
	want := !m.entries[i].Watched
	gen := m.generation
	m.mu.Unlock()

	updated, err := m.gw.SetWatched(ctx, id, want)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return domain.Movie{}, fmt.Errorf("watchlist.ToggleWatched %s: %w", id, ErrStale)
	}
	delete(m.pending, id)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("watchlist.ToggleWatched %s: %w", id, err)
	}

	// Other entries may have shifted while the request was in flight.
	if j := m.indexOf(id); j >= 0 {
		m.entries[j] = *updated
	}
	return *updated, nil
}

// Remove deletes id on the server, then locally.
func (m *Model) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.indexOf(id) < 0 {
		m.mu.Unlock()
		return fmt.Errorf("watchlist.Remove %s: %w", id, client.ErrNotFound)
	}
	if _, busy := m.pending[id]; busy {
		m.mu.Unlock()
		return fmt.Errorf("watchlist.Remove %s: %w", id, ErrBusy)
	}
	m.pending[id] = struct{}{}
	gen := m.generation
	m.mu.Unlock()

	err := m.gw.RemoveMovie(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return fmt.Errorf("watchlist.Remove %s: %w", id, ErrStale)
	}
	delete(m.pending, id)
	if err != nil {
		return fmt.Errorf("watchlist.Remove %s: %w", id, err)
	}

	if j := m.indexOf(id); j >= 0 {
		m.entries = append(m.entries[:j:j], m.entries[j+1:]...)
	}
	return nil
}

// indexOf must be called with mu held.
func (m *Model) indexOf(id string) int {
	for i := range m.entries {
		if m.entries[i].ID == id {
			return i
		}
	}
	return -1
}
