// Package search filters notes by a free-text term.
package search

import (
	"strings"

	"github.com/starford/markit/internal/models"
)

// Filter returns the notes whose title or content contains term, ignoring case,
// in their original order. An empty term returns every note. The result is
// never nil and never aliases notes.
func Filter(notes []models.Note, term string) []models.Note {
	out := make([]models.Note, 0, len(notes))
	if term == "" {
		return append(out, notes...)
	}
	needle := strings.ToLower(term)
	for _, n := range notes {
		if contains(n, needle) {
			out = append(out, n)
		}
	}
	return out
}

// Matches reports whether n contains term in its title or content, ignoring case.
func Matches(n models.Note, term string) bool {
	if term == "" {
		return true
	}
	return contains(n, strings.ToLower(term))
}

func contains(n models.Note, needle string) bool {
	return strings.Contains(strings.ToLower(n.Title), needle) ||
		strings.Contains(strings.ToLower(n.Content), needle)
}
