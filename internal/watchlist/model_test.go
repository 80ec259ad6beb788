package watchlist

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/watchlist/pkg/client"
	"github.com/naveenspark/watchlist/pkg/domain"
)

// fakeGateway is an in-memory backend. Calls can be held with gate so tests
// control response arrival order.
type fakeGateway struct {
	mu      sync.Mutex
	movies  []domain.Movie
	nextID  int
	catalog map[string]string // normalized title -> canonical title
	failAll error
	calls   int

	gate map[string]chan struct{} // op+id -> release
}

func newFakeGateway(titles ...string) *fakeGateway {
	g := &fakeGateway{catalog: map[string]string{}, gate: map[string]chan struct{}{}}
	for _, t := range titles {
		g.catalog[domain.NormalizeTitle(t)] = t
	}
	return g
}

func (g *fakeGateway) seed(movies ...domain.Movie) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.movies = append(g.movies, movies...)
}

func (g *fakeGateway) hold(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gate[key] = ch
	return ch
}

func (g *fakeGateway) wait(key string) {
	g.mu.Lock()
	ch := g.gate[key]
	g.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (g *fakeGateway) FetchWatchlist(_ context.Context) ([]domain.Movie, error) {
	g.wait("fetch")
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failAll != nil {
		return nil, g.failAll
	}
	return append([]domain.Movie{}, g.movies...), nil
}

func (g *fakeGateway) AddMovie(_ context.Context, title string) (*domain.Movie, error) {
	g.wait("add:" + title)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failAll != nil {
		return nil, g.failAll
	}
	canonical, ok := g.catalog[domain.NormalizeTitle(title)]
	if !ok {
		return nil, &client.Error{Kind: client.KindNotFound, StatusCode: 404, Message: "Movie not found in TMDB database"}
	}
	g.nextID++
	m := domain.Movie{ID: "m" + strconv.Itoa(g.nextID), Title: canonical}
	g.movies = append(g.movies, m)
	return &m, nil
}

func (g *fakeGateway) SetWatched(_ context.Context, id string, watched bool) (*domain.Movie, error) {
	g.wait("toggle:" + id)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failAll != nil {
		return nil, g.failAll
	}
	for i := range g.movies {
		if g.movies[i].ID == id {
			g.movies[i].Watched = watched
			m := g.movies[i]
			return &m, nil
		}
	}
	return nil, &client.Error{Kind: client.KindNotFound, StatusCode: 404}
}

func (g *fakeGateway) RemoveMovie(_ context.Context, id string) error {
	g.wait("remove:" + id)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failAll != nil {
		return g.failAll
	}
	for i := range g.movies {
		if g.movies[i].ID == id {
			g.movies = append(g.movies[:i], g.movies[i+1:]...)
			return nil
		}
	}
	return &client.Error{Kind: client.KindNotFound, StatusCode: 404}
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newModel(t *testing.T, gw Gateway) *Model {
	t.Helper()
	m := New(gw, nil)
	m.Reset(uuid.New())
	return m
}

func ids(movies []domain.Movie) []string {
	out := make([]string, len(movies))
	for i, mv := range movies {
		out[i] = mv.ID
	}
	return out
}

func TestAddInception(t *testing.T) {
	gw := newFakeGateway("Inception")
	m := newModel(t, gw)
	before := m.Len()

	got, err := m.Add(context.Background(), "Inception")
	require.NoError(t, err)
	assert.Equal(t, before+1, m.Len())
	assert.Equal(t, "Inception", got.Title)
	assert.False(t, got.Watched)

	entry, ok := m.Get(got.ID)
	require.True(t, ok)
	assert.Equal(t, got, entry)
}

func TestAddAppendsInCallOrder(t *testing.T) {
	m := newModel(t, newFakeGateway("Alien", "Heat", "Ran"))
	for _, title := range []string{"Alien", "Heat", "Ran"} {
		_, err := m.Add(context.Background(), title)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(m.Entries()))
}

func TestAddNotFoundLeavesSequence(t *testing.T) {
	m := newModel(t, newFakeGateway("Alien"))
	_, err := m.Add(context.Background(), "Alien")
	require.NoError(t, err)
	before := m.Entries()

	_, err = m.Add(context.Background(), "No Such Film")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.Equal(t, before, m.Entries())
}

func TestAddRejectsBlankTitle(t *testing.T) {
	gw := newFakeGateway()
	m := newModel(t, gw)
	_, err := m.Add(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, client.KindRejected, client.KindOf(err))
	assert.Zero(t, gw.callCount())
}

// duplicateGateway always returns the same id, as a backend that dedupes by
// catalog id would.
type duplicateGateway struct{ fakeGateway }

func (d *duplicateGateway) AddMovie(_ context.Context, title string) (*domain.Movie, error) {
	return &domain.Movie{ID: "same", Title: title}, nil
}

func TestNoDuplicateIDsAfterAdds(t *testing.T) {
	m := newModel(t, &duplicateGateway{})
	for _, title := range []string{"Alien", "Aliens", "Alien 3"} {
		_, err := m.Add(context.Background(), title)
		require.NoError(t, err)
	}
	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Alien 3", entries[0].Title)
}

func TestToggleUsesServerEntry(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))

	got, err := m.ToggleWatched(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, got.Watched)
	entry, _ := m.Get("1")
	assert.True(t, entry.Watched)

	got, err = m.ToggleWatched(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, got.Watched)
}

func TestToggleFailureLeavesWatched(t *testing.T) {
	tests := []struct {
		name    string
		watched bool
		err     error
	}{
		{"unwatched server error", false, &client.Error{Kind: client.KindServerError, StatusCode: 500}},
		{"watched unavailable", true, &client.Error{Kind: client.KindUnavailable}},
		{"watched not found", true, &client.Error{Kind: client.KindNotFound, StatusCode: 404}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.seed(domain.Movie{ID: "1", Title: "Heat", Watched: tt.watched})
			m := newModel(t, gw)
			require.NoError(t, m.Load(context.Background()))
			before := m.Entries()

			gw.failAll = tt.err
			_, err := m.ToggleWatched(context.Background(), "1")
			require.Error(t, err)
			assert.Equal(t, client.KindOf(tt.err), client.KindOf(err))

			entry, ok := m.Get("1")
			require.True(t, ok)
			assert.Equal(t, tt.watched, entry.Watched)
			assert.Equal(t, before, m.Entries())
			assert.False(t, m.Pending("1"))
		})
	}
}

func TestRemoveAbsentIsNotFoundAndUnchanged(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"}, domain.Movie{ID: "2", Title: "Ran"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))
	before := m.Entries()
	calls := gw.callCount()

	for i := 0; i < 2; i++ {
		err := m.Remove(context.Background(), "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, client.ErrNotFound)
	}
	assert.Equal(t, before, m.Entries())
	assert.Equal(t, calls, gw.callCount(), "absent ids never reach the gateway")
}

func TestRemoveFailureKeepsEntry(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))

	gw.failAll = &client.Error{Kind: client.KindUnavailable}
	require.Error(t, m.Remove(context.Background(), "1"))
	_, ok := m.Get("1")
	assert.True(t, ok)
}

func TestReplayEquivalence(t *testing.T) {
	gw := newFakeGateway("Alien", "Heat", "Ran", "Tron")
	m := newModel(t, gw)
	ctx := context.Background()

	// Replaying the confirmed results by hand must yield the same sequence.
	var replay []domain.Movie
	apply := func(op string, mv domain.Movie) {
		switch op {
		case "add":
			replay = append(replay, mv)
		case "toggle":
			for i := range replay {
				if replay[i].ID == mv.ID {
					replay[i] = mv
				}
			}
		case "remove":
			for i := range replay {
				if replay[i].ID == mv.ID {
					replay = append(replay[:i], replay[i+1:]...)
					break
				}
			}
		}
	}

	for _, title := range []string{"Alien", "Heat", "Ran"} {
		mv, err := m.Add(ctx, title)
		require.NoError(t, err)
		apply("add", mv)
	}
	mv, err := m.ToggleWatched(ctx, "m2")
	require.NoError(t, err)
	apply("toggle", mv)
	require.NoError(t, m.Remove(ctx, "m1"))
	apply("remove", domain.Movie{ID: "m1"})
	mv, err = m.Add(ctx, "Tron")
	require.NoError(t, err)
	apply("add", mv)
	mv, err = m.ToggleWatched(ctx, "m4")
	require.NoError(t, err)
	apply("toggle", mv)

	assert.Equal(t, replay, m.Entries())

	// And it matches the server.
	server, err := gw.FetchWatchlist(ctx)
	require.NoError(t, err)
	assert.Equal(t, server, m.Entries())
}

func TestConcurrentToggleAndRemoveAnyArrivalOrder(t *testing.T) {
	for _, toggleFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("toggleFirst=%v", toggleFirst), func(t *testing.T) {
			gw := newFakeGateway()
			gw.seed(domain.Movie{ID: "1", Title: "Heat"}, domain.Movie{ID: "2", Title: "Ran"}, domain.Movie{ID: "3", Title: "Tron"})
			m := newModel(t, gw)
			require.NoError(t, m.Load(context.Background()))

			releaseToggle := gw.hold("toggle:1")
			releaseRemove := gw.hold("remove:2")

			var wg sync.WaitGroup
			var toggleErr, removeErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, toggleErr = m.ToggleWatched(context.Background(), "1")
			}()
			go func() {
				defer wg.Done()
				removeErr = m.Remove(context.Background(), "2")
			}()

			require.Eventually(t, func() bool { return m.Pending("1") && m.Pending("2") }, time.Second, time.Millisecond)

			if toggleFirst {
				close(releaseToggle)
				require.Eventually(t, func() bool { return !m.Pending("1") }, time.Second, time.Millisecond)
				close(releaseRemove)
			} else {
				close(releaseRemove)
				require.Eventually(t, func() bool { return !m.Pending("2") }, time.Second, time.Millisecond)
				close(releaseToggle)
			}
			wg.Wait()

			require.NoError(t, toggleErr)
			require.NoError(t, removeErr)
			assert.Equal(t, []string{"1", "3"}, ids(m.Entries()))
			entry, _ := m.Get("1")
			assert.True(t, entry.Watched)
		})
	}
}

func TestSecondOperationOnSameEntryIsBusy(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))

	release := gw.hold("toggle:1")
	done := make(chan error, 1)
	go func() {
		_, err := m.ToggleWatched(context.Background(), "1")
		done <- err
	}()
	require.Eventually(t, func() bool { return m.Pending("1") }, time.Second, time.Millisecond)

	_, err := m.ToggleWatched(context.Background(), "1")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.Remove(context.Background(), "1"), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	entry, _ := m.Get("1")
	assert.True(t, entry.Watched, "exactly one flip")
}

func TestDoubleAddSameTitleIsBusy(t *testing.T) {
	gw := newFakeGateway("Inception")
	m := newModel(t, gw)

	release := gw.hold("add:Inception")
	done := make(chan error, 1)
	go func() {
		_, err := m.Add(context.Background(), "Inception")
		done <- err
	}()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.adding) == 1
	}, time.Second, time.Millisecond)

	_, err := m.Add(context.Background(), "  inception ")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, m.Len())
}

func TestStaleResultAfterResetIsDiscarded(t *testing.T) {
	gw := newFakeGateway("Inception")
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))

	release := gw.hold("add:Inception")
	done := make(chan error, 1)
	go func() {
		_, err := m.Add(context.Background(), "Inception")
		done <- err
	}()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.adding) == 1
	}, time.Second, time.Millisecond)

	// Logout happens while the add is in flight.
	m.Reset(uuid.Nil)
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Zero(t, m.Len())
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)

	release := gw.hold("fetch")
	done := make(chan error, 1)
	go func() { done <- m.Load(context.Background()) }()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.loading
	}, time.Second, time.Millisecond)

	next := uuid.New()
	m.Reset(next)
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Zero(t, m.Len())
	assert.Equal(t, next, m.Generation())

	// The new generation can load normally.
	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, 1, m.Len())
}

func TestLoadCollapsesDuplicateIDs(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"}, domain.Movie{ID: "1", Title: "Heat again"}, domain.Movie{ID: "2", Title: "Ran"})
	m := newModel(t, gw)

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, []string{"1", "2"}, ids(m.Entries()))
	entry, _ := m.Get("1")
	assert.Equal(t, "Heat", entry.Title)
}

func TestLoadUnauthorizedKeepsKind(t *testing.T) {
	gw := newFakeGateway()
	gw.failAll = &client.Error{Kind: client.KindUnauthorized, StatusCode: 401}
	m := newModel(t, gw)

	err := m.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Zero(t, m.Len())
}

func TestEntriesReturnsCopy(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))

	entries := m.Entries()
	entries[0].Title = "mutated"
	entry, _ := m.Get("1")
	assert.Equal(t, "Heat", entry.Title)
}

type fakeSessions struct{ fns []func(domain.Session) }

func (f *fakeSessions) OnChange(fn func(domain.Session)) { f.fns = append(f.fns, fn) }

func (f *fakeSessions) emit(s domain.Session) {
	for _, fn := range f.fns {
		fn(s)
	}
}

func TestFollowResetsOnSessionChange(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(domain.Movie{ID: "1", Title: "Heat"})
	m := newModel(t, gw)
	require.NoError(t, m.Load(context.Background()))
	require.Equal(t, 1, m.Len())

	src := &fakeSessions{}
	m.Follow(src)

	next := uuid.New()
	src.emit(domain.Session{Generation: next})
	assert.Zero(t, m.Len())
	assert.Equal(t, next, m.Generation())
}
