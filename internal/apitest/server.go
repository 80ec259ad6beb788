// Package apitest runs an in-memory watchlist backend over httptest for
// exercising the client, the TUI and the CLI end to end.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/watchlist/pkg/domain"
)

// DefaultCatalog is the set of titles AddMovie can resolve.
var DefaultCatalog = []domain.Movie{
	{Title: "Inception", Description: "A thief who steals corporate secrets through dream-sharing.", ImageURL: "https://image.example.com/inception.jpg", IMDbID: "tt1375666"},
	{Title: "The Matrix", Description: "A hacker learns the true nature of reality.", ImageURL: "https://image.example.com/matrix.jpg", IMDbID: "tt0133093"},
	{Title: "Arrival", Description: "A linguist works to communicate with visitors.", IMDbID: "tt2543164"},
	{Title: "Heat", Description: "A detective hunts a crew of professional thieves.", ImageURL: "https://image.example.com/heat.jpg", IMDbID: "tt0113277"},
}

type account struct {
	user     domain.User
	password string
}

type ctxKey struct{}

// Server is a fake backend speaking the watchlist REST contract.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]account        // by username
	tokens   map[string]string         // token -> user id
	movies   map[string][]domain.Movie // user id -> watchlist
	catalog  map[string]domain.Movie   // normalized title -> movie
	failures map[string]int            // "METHOD /path-prefix" -> status, used once
	nextID   int
}

// New starts a server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
		movies:   make(map[string][]domain.Movie),
		catalog:  make(map[string]domain.Movie),
		failures: make(map[string]int),
	}
	for _, mv := range DefaultCatalog {
		s.catalog[domain.NormalizeTitle(mv.Title)] = mv
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.injectFailures)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.signup)
		r.Post("/login", s.login)
	})

	r.Route("/api/movies", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", s.listMovies)
		r.Post("/", s.addMovie)
		r.Put("/{id}", s.updateMovie)
		r.Delete("/{id}", s.deleteMovie)
	})

	return r
}

// AddUser registers an account directly.
func (s *Server) AddUser(username, email, password string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, email, password)
}

func (s *Server) addUserLocked(username, email, password string) domain.User {
	u := domain.User{ID: uuid.NewString(), Username: username, Email: email}
	s.accounts[username] = account{user: u, password: password}
	return u
}

// IssueToken returns a fresh bearer token for username.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.accounts[username].user.ID)
}

func (s *Server) issueLocked(userID string) string {
	tok := "tok-" + uuid.NewString()
	s.tokens[tok] = userID
	return tok
}

// RevokeTokens invalidates every issued token, as an expiry would.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// Seed stores movies for username and returns them with their ids.
func (s *Server) Seed(username string, movies ...domain.Movie) []domain.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.accounts[username].user.ID
	out := make([]domain.Movie, 0, len(movies))
	for _, mv := range movies {
		s.nextID++
		mv.ID = strconv.Itoa(s.nextID)
		mv.UserID = uid
		s.movies[uid] = append(s.movies[uid], mv)
		out = append(out, mv)
	}
	return out
}

// Movies returns username's stored watchlist.
func (s *Server) Movies(username string) []domain.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.movies[s.accounts[username].user.ID]
	out := make([]domain.Movie, len(src))
	copy(out, src)
	return out
}

// FailNext makes the next request matching method and path prefix answer
// with status instead of being served.
func (s *Server) FailNext(method, pathPrefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+pathPrefix] = status
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		for k, status := range s.failures {
			method, prefix, _ := strings.Cut(k, " ")
			if method == r.Method && strings.HasPrefix(r.URL.Path, prefix) {
				delete(s.failures, k)
				s.mu.Unlock()
				writeDetail(w, status, http.StatusText(status))
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		uid, known := s.tokens[tok]
		s.mu.Unlock()
		if !ok || !known {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, uid)))
	})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[req.Username]; taken {
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	for _, a := range s.accounts {
		if a.user.Email == req.Email {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	s.addUserLocked(req.Username, req.Email, req.Password)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User created successfully"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[r.PostForm.Get("username")]
	if !ok || a.password != r.PostForm.Get("password") {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.issueLocked(a.user.ID),
		"token_type":   "bearer",
		"user":         a.user,
	})
}

func (s *Server) listMovies(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxKey{}).(string)
	s.mu.Lock()
	movies := append([]domain.Movie{}, s.movies[uid]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, movies)
}

func (s *Server) addMovie(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxKey{}).(string)
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mv, ok := s.catalog[domain.NormalizeTitle(req.Title)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Movie not found in TMDB database")
		return
	}
	s.nextID++
	mv.ID = strconv.Itoa(s.nextID)
	mv.UserID = uid
	s.movies[uid] = append(s.movies[uid], mv)
	writeJSON(w, http.StatusOK, mv)
}

func (s *Server) updateMovie(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxKey{}).(string)
	id := chi.URLParam(r, "id")
	watched, err := strconv.ParseBool(r.URL.Query().Get("watched"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid watched value: %v", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.movies[uid] {
		if s.movies[uid][i].ID == id {
			s.movies[uid][i].Watched = watched
			writeJSON(w, http.StatusOK, s.movies[uid][i])
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Movie not found")
}

func (s *Server) deleteMovie(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxKey{}).(string)
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.movies[uid]
	for i := range list {
		if list[i].ID == id {
			s.movies[uid] = append(list[:i:i], list[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Movie deleted successfully"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Movie not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
