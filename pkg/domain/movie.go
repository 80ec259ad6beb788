package domain

import "strings"

// Movie is one watchlist entry as returned by the backend.
type Movie struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Watched     bool   `json:"watched"`
	IMDbID      string `json:"imdb_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// NormalizeTitle folds a user-typed title for duplicate-submission checks.
// Whitespace runs collapse and case is ignored.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// StatusLabel returns "watched" or "unwatched".
func (m Movie) StatusLabel() string {
	if m.Watched {
		return "watched"
	}
	return "unwatched"
}

// NoDescription is shown for entries the catalog has no synopsis for.
const NoDescription = "No description available"

// DescriptionOrDefault returns the description, or NoDescription when it is blank.
func (m Movie) DescriptionOrDefault() string {
	if d := strings.TrimSpace(m.Description); d != "" {
		return d
	}
	return NoDescription
}
