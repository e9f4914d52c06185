package vault

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/hutch/pkg/types"
	"gopkg.in/yaml.v3"
)

const frontmatterFence = "---"

// ParseFrontmatter splits a task file into its YAML frontmatter and
// markdown body. Files without a frontmatter block yield a zero task
// and the full content as body.
func ParseFrontmatter(data []byte) (*types.Task, string, error) {
	content := string(data)
	if !strings.HasPrefix(content, frontmatterFence+"\n") {
		return &types.Task{}, content, nil
	}

	rest := content[len(frontmatterFence)+1:]
	end := strings.Index(rest, "\n"+frontmatterFence)
	if end < 0 {
		return nil, "", fmt.Errorf("unterminated frontmatter block")
	}

	var task types.Task
	if err := yaml.Unmarshal([]byte(rest[:end]), &task); err != nil {
		return nil, "", fmt.Errorf("invalid frontmatter: %w", err)
	}

	// Consume the closing fence's newline and the blank separator
	// line RenderFrontmatter emits before the body.
	body := rest[end+len("\n"+frontmatterFence):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")
	return &task, body, nil
}

// RenderFrontmatter serializes a task and body back into file form.
func RenderFrontmatter(task *types.Task, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(frontmatterFence + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(task); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish frontmatter: %w", err)
	}

	buf.WriteString(frontmatterFence + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify normalizes a title into a filename fragment: lowercase,
// spaces to hyphens, alphanumerics and hyphens only, at most 30 chars.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugStrip.ReplaceAllString(s, "")
	if len(s) > 30 {
		s = s[:30]
	}
	return strings.TrimRight(s, "-")
}

// TaskFilename builds the canonical task filename for a title created
// at ts: {YYYYMMDD}-{HHMMSS}-{slug}.md.
func TaskFilename(title string, ts time.Time) string {
	slug := Slugify(title)
	if slug == "" {
		slug = "task"
	}
	return fmt.Sprintf("%s-%s.md", ts.Format("20060102-150405"), slug)
}

// TaskTitle extracts the display title from a task body, falling back
// to a default when the heading is missing.
func TaskTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# Task:") {
			if t := strings.TrimSpace(strings.TrimPrefix(line, "# Task:")); t != "" {
				return t
			}
		}
	}
	return "Untitled Task"
}
