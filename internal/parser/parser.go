// Package parser derives list summaries (heading, preview, tags) from note content.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// PreviewLength is the maximum number of runes in a preview.
const PreviewLength = 100

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

var previewStrip = strings.NewReplacer("#", "", "*", "", "`", "")

// Summary is the derived, display-only view of a note's content.
type Summary struct {
	Heading string   `json:"heading,omitempty"`
	Preview string   `json:"preview"`
	Tags    []string `json:"tags"`
}

// Summarize extracts a heading, a plain-text preview and tags from markdown.
func Summarize(content string) Summary {
	fm, body := splitFrontmatter(content)
	return Summary{
		Heading: heading(fm, body),
		Preview: Preview(body),
		Tags:    extractTags(body, fm),
	}
}

// Preview strips markdown emphasis markers (#, *, `) and truncates to
// PreviewLength runes.
func Preview(content string) string {
	s := previewStrip.Replace(content)
	if r := []rune(s); len(r) > PreviewLength {
		return string(r[:PreviewLength])
	}
	return s
}

// splitFrontmatter separates YAML frontmatter between leading --- lines from the
// body. Missing or invalid frontmatter leaves the whole content as body.
func splitFrontmatter(content string) (map[string]any, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\n\r")
	if !strings.HasPrefix(trimmed, delim) {
		return nil, content
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, content
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, content
	}
	body := strings.TrimLeft(rest[idx+1+len(delim):], "\n\r")
	return fm, body
}

// extractTags collects frontmatter tags followed by inline #tags, deduplicated.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// heading returns the frontmatter title, else the first H1, else "".
func heading(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
