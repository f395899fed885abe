package reviews

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("review not found")

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        string    `json:"id"`
	EntryID   string    `json:"casino_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"` // 1-5
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationError is returned before any store call when a submission is
// incomplete.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Validate checks the fields a user fills in. Comment and username are
// trimmed in place.
func Validate(r *Review) error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return &ValidationError{Field: "rating", Reason: "please select a rating between 1 and 5"}
	}
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return &ValidationError{Field: "username", Reason: "please enter a username"}
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Comment == "" {
		return &ValidationError{Field: "comment", Reason: "please write a comment"}
	}
	return nil
}
