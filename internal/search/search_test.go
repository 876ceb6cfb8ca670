package search

import (
	"testing"

	"github.com/starford/markit/internal/models"
)

func TestFilter(t *testing.T) {
	notes := []models.Note{
		{ID: "1", Title: "Groceries", Content: "milk, eggs"},
		{ID: "2", Title: "Ideas", Content: "Build a MILK tracker"},
		{ID: "3", Title: "Trip", Content: "pack bags"},
	}

	tests := []struct {
		name string
		term string
		want []string
	}{
		{"empty term returns all", "", []string{"1", "2", "3"}},
		{"content match case-insensitive", "milk", []string{"1", "2"}},
		{"title match", "TRIP", []string{"3"}},
		{"substring inside word", "dea", []string{"2"}},
		{"no match", "zebra", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(notes, tt.term)
			if got == nil {
				t.Fatal("Filter returned nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d notes, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestFilter_EmptyInput(t *testing.T) {
	got := Filter(nil, "anything")
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestFilter_DoesNotAlias(t *testing.T) {
	notes := []models.Note{{ID: "1", Title: "a"}}
	got := Filter(notes, "")
	got[0].Title = "changed"
	if notes[0].Title != "a" {
		t.Error("Filter result aliases input")
	}
}

func TestMatches(t *testing.T) {
	n := models.Note{Title: "Weekly Review", Content: "done"}
	if !Matches(n, "weekly") {
		t.Error("expected title match")
	}
	if !Matches(n, "DON") {
		t.Error("expected content match")
	}
	if Matches(n, "monthly") {
		t.Error("unexpected match")
	}
	if !Matches(n, "") {
		t.Error("empty term should match")
	}
}
