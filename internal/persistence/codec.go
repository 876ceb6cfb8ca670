package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/markit/internal/models"
)

// record is the persisted shape of a note. Pointers distinguish a missing field
// from an empty one.
type record struct {
	ID        *string `json:"id"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	CreatedAt *string `json:"createdAt"`
	UpdatedAt *string `json:"updatedAt"`
}

// Validate checks that every field is present and well-formed.
func (r *record) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.NotNil, validation.Required),
		validation.Field(&r.Title, validation.NotNil),
		validation.Field(&r.Content, validation.NotNil),
		validation.Field(&r.CreatedAt, validation.NotNil, validation.Required, validation.Date(TimeLayout)),
		validation.Field(&r.UpdatedAt, validation.NotNil, validation.Required, validation.Date(TimeLayout)),
	)
}

func (r *record) note() models.Note {
	created, _ := time.Parse(TimeLayout, *r.CreatedAt)
	updated, _ := time.Parse(TimeLayout, *r.UpdatedAt)
	return models.Note{
		ID:        *r.ID,
		Title:     *r.Title,
		Content:   *r.Content,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func toRecord(n models.Note) record {
	created := n.CreatedAt.UTC().Format(TimeLayout)
	updated := n.UpdatedAt.UTC().Format(TimeLayout)
	return record{
		ID:        &n.ID,
		Title:     &n.Title,
		Content:   &n.Content,
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
}

// Encode serializes notes as a JSON array of records, preserving order.
func Encode(notes []models.Note) ([]byte, error) {
	recs := make([]record, len(notes))
	for i, n := range notes {
		recs[i] = toRecord(n)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode: %w", err)
	}
	return data, nil
}

// Decode parses a JSON array of records. Any structural problem rejects the
// whole value.
func Decode(data []byte) ([]models.Note, error) {
	var recs []*record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("persistence: decode: %w", err)
	}
	if recs == nil {
		// "null" is not a collection.
		return nil, errors.New("persistence: decode: value is not an array")
	}

	notes := make([]models.Note, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for i, r := range recs {
		if r == nil {
			return nil, fmt.Errorf("persistence: record %d: null record", i)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("persistence: record %d: %w", i, err)
		}
		n := r.note()
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("persistence: record %d: duplicate id %q", i, n.ID)
		}
		if n.UpdatedAt.Before(n.CreatedAt) {
			return nil, fmt.Errorf("persistence: record %d: updatedAt precedes createdAt", i)
		}
		seen[n.ID] = struct{}{}
		notes = append(notes, n)
	}
	return notes, nil
}
