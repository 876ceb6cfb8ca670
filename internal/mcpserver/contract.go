package mcpserver

// NoteFormatContract describes the MarkIt note record for LLM consumers.
const NoteFormatContract = `# MarkIt Note Format

A note is a flat record. All notes live in one collection ordered newest-created first.

## Fields

| Field | Type | Notes |
|---|---|---|
| ` + "`id`" + ` | string | Assigned on creation, unique, never changes |
| ` + "`title`" + ` | string | Defaults to "Untitled Note" |
| ` + "`content`" + ` | string | Markdown; defaults to "# New Note\n\nStart writing your markdown here..." |
| ` + "`createdAt`" + ` | RFC 3339 timestamp | Set once on creation |
| ` + "`updatedAt`" + ` | RFC 3339 timestamp | Advances on every committed change |

## Content conventions

- Plain Markdown. A leading YAML frontmatter block (between ` + "`---`" + ` lines) is allowed.
- Tags come from a frontmatter ` + "`tags:`" + ` list and from inline ` + "`#tag`" + ` words.
- List previews strip ` + "`#`" + `, ` + "`*`" + ` and backticks and keep the first 100 characters.

## Export

Exported files are named after the title: lowercased, every character outside
a-z and 0-9 replaced by an underscore, plus ` + "`.md`" + `. A title with no such
characters exports as ` + "`untitled.md`" + `. The file body is the content, byte for byte.

## Example

` + "```" + `json
{
  "id": "0190f7b2-6c1e-7d3a-9c11-2f0e6a4b8d21",
  "title": "Weekly Review",
  "content": "# Weekly Review\n\n- shipped export #work",
  "createdAt": "2025-01-20T09:30:00Z",
  "updatedAt": "2025-01-20T09:42:13.5Z"
}
` + "```" + `
`
