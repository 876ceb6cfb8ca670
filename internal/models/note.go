// Package models defines the domain types for MarkIt.
package models

import "time"

// Defaults applied to every freshly created note.
const (
	DefaultTitle   = "Untitled Note"
	DefaultContent = "# New Note\n\nStart writing your markdown here..."
)

// Note is a single markdown note held by the repository.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Apply returns a copy of n with the fields set in p replaced.
// Timestamps are left untouched; the repository owns them.
func (n Note) Apply(p Patch) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	return n
}

// Patch is a partial update of the mutable note fields. Nil fields are unchanged.
type Patch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

// Merge returns p overlaid with later; fields set in later win.
func (p Patch) Merge(later Patch) Patch {
	if later.Title != nil {
		p.Title = later.Title
	}
	if later.Content != nil {
		p.Content = later.Content
	}
	return p
}

// TitlePatch is shorthand for a patch that only sets the title.
func TitlePatch(title string) Patch {
	return Patch{Title: &title}
}

// ContentPatch is shorthand for a patch that only sets the content.
func ContentPatch(content string) Patch {
	return Patch{Content: &content}
}

// EntryMetadata describes one value held by a storage provider.
type EntryMetadata struct {
	Key       string    `json:"key"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
