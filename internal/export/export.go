// Package export turns a note into a downloadable markdown file.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/markit/internal/models"
)

// MIMEType is the content type of every exported artifact.
const MIMEType = "text/markdown"

// fallbackStem names files whose title has no usable characters.
const fallbackStem = "untitled"

// Artifact is an exported note ready to be written or served.
type Artifact struct {
	Filename string
	MIMEType string
	Body     []byte
}

// Export builds the artifact for n. Body holds the exact bytes of the content.
func Export(n models.Note) Artifact {
	return Artifact{
		Filename: Filename(n.Title),
		MIMEType: MIMEType,
		Body:     []byte(n.Content),
	}
}

// Filename derives a safe file name from a title: lowercased, every character
// outside a-z and 0-9 replaced with an underscore, suffixed with .md.
func Filename(title string) string {
	var b strings.Builder
	usable := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			usable = true
			continue
		}
		b.WriteByte('_')
	}
	if !usable {
		return fallbackStem + ".md"
	}
	return b.String() + ".md"
}

// WriteTo writes the body to w.
func (a Artifact) WriteTo(w io.Writer) (int64, error) {
	return bytes.NewReader(a.Body).WriteTo(w)
}

// ContentType returns the MIME type with charset, suitable for an HTTP header.
func (a Artifact) ContentType() string {
	return a.MIMEType + "; charset=utf-8"
}

// WriteFile writes the artifact into dir under its filename and returns the path.
func WriteFile(dir string, a Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	path := filepath.Join(dir, a.Filename)
	if err := os.WriteFile(path, a.Body, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}
