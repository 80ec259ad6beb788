// Package session keeps the authenticated identity and credential of the
// client, persisted across restarts.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/naveenspark/watchlist/pkg/domain"
)

const (
	tokenFile = "token"
	userFile  = "user.json"
)

var errMalformed = errors.New("malformed session data")

// Store holds at most one session. The token and user identity are written
// and removed together.
type Store struct {
	dir    string
	logger *log.Logger

	mu        sync.RWMutex
	current   domain.Session
	listeners []func(domain.Session)
}

// New returns an anonymous Store persisting into dir. Call Restore to load a
// previously established session.
func New(dir string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory the session files live in.
func (s *Store) Dir() string { return s.dir }

// OnChange registers fn to receive every state transition. Callbacks run
// synchronously on the goroutine that caused the transition, after the store
// lock is released.
func (s *Store) OnChange(fn func(domain.Session)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Current returns the active session.
func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the current credential, or "" when anonymous.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Restore loads the persisted session. Missing or malformed data yields an
// anonymous session; malformed files are removed.
func (s *Store) Restore() domain.Session {
	token, user, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("discarding persisted session", "dir", s.dir, "err", err)
			if rmErr := s.remove(); rmErr != nil {
				s.logger.Warn("remove session files", "err", rmErr)
			}
		}
		return s.set(domain.Session{})
	}
	s.logger.Debug("session restored", "user", user.Username)
	return s.set(domain.Session{
		User:       user,
		Token:      token,
		State:      domain.Authenticated,
		Generation: uuid.New(),
	})
}

// Establish stores user and token durably and makes them the active session.
// A failed write leaves the store anonymous.
func (s *Store) Establish(user domain.User, token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Current(), fmt.Errorf("session.Establish: empty token")
	}
	if err := s.write(user, token); err != nil {
		if rmErr := s.remove(); rmErr != nil {
			s.logger.Warn("roll back session files", "err", rmErr)
		}
		// The previous session's files are gone, so it cannot stay active.
		sess := s.Current()
		if sess.State == domain.Authenticated {
			sess = s.set(domain.Session{})
		}
		return sess, fmt.Errorf("session.Establish: %w", err)
	}
	s.logger.Info("session established", "user", user.Username)
	return s.set(domain.Session{
		User:       user,
		Token:      token,
		State:      domain.Authenticated,
		Generation: uuid.New(),
	}), nil
}

// Clear removes the persisted and in-memory session. Calling it while
// anonymous is a no-op apart from removing stray files.
func (s *Store) Clear() error {
	err := s.remove()
	if s.Current().State == domain.Authenticated {
		s.logger.Info("session cleared")
		s.set(domain.Session{})
	}
	if err != nil {
		return fmt.Errorf("session.Clear: %w", err)
	}
	return nil
}

func (s *Store) set(next domain.Session) domain.Session {
	s.mu.Lock()
	s.current = next
	listeners := append([]func(domain.Session){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

func (s *Store) read() (string, domain.User, error) {
	var user domain.User

	tokData, tokErr := os.ReadFile(filepath.Join(s.dir, tokenFile))
	userData, userErr := os.ReadFile(filepath.Join(s.dir, userFile))
	if errors.Is(tokErr, fs.ErrNotExist) && errors.Is(userErr, fs.ErrNotExist) {
		return "", user, fs.ErrNotExist
	}
	if tokErr != nil {
		return "", user, fmt.Errorf("%w: token: %v", errMalformed, tokErr)
	}
	if userErr != nil {
		return "", user, fmt.Errorf("%w: user: %v", errMalformed, userErr)
	}

	token := strings.TrimSpace(string(tokData))
	if token == "" {
		return "", user, fmt.Errorf("%w: empty token", errMalformed)
	}
	if err := json.Unmarshal(userData, &user); err != nil {
		return "", user, fmt.Errorf("%w: user: %v", errMalformed, err)
	}
	if user.Username == "" && user.ID == "" {
		return "", user, fmt.Errorf("%w: user has no identity", errMalformed)
	}
	return token, user, nil
}

func (s *Store) write(user domain.User, token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, userFile), data); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, tokenFile), []byte(token)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) remove() error {
	var errs []error
	for _, name := range []string{tokenFile, userFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
