// Package frontmatter splits the leading YAML metadata block from a Markdown document.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/apperr"
)

const delim = "---"

// Result holds the output of parsing a Markdown document.
type Result struct {
	Metadata    map[string]any
	HasMetadata bool
	Body        string
	Title       string
}

// Parse separates the metadata block (between leading --- lines) from the body.
//
// The block must open on the very first line. A document that opens a block
// but never closes it fails with apperr.ErrUnterminated; a block that does not
// decode to a mapping fails with apperr.ErrInvalidMetadata. Without a block the
// whole input is body and Metadata is an empty map.
func Parse(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	meta, body, had, err := split(text)
	if err != nil {
		return nil, err
	}
	if err := normalizeTitle(meta); err != nil {
		return nil, err
	}

	return &Result{
		Metadata:    meta,
		HasMetadata: had,
		Body:        body,
		Title:       deriveTitle(meta, body),
	}, nil
}

func split(text string) (map[string]any, string, bool, error) {
	first, rest, found := strings.Cut(text, "\n")
	if strings.TrimRight(first, " \t") != delim {
		return map[string]any{}, text, false, nil
	}
	if !found {
		return nil, "", false, apperr.ErrUnterminated
	}

	var block strings.Builder
	for {
		line, next, more := strings.Cut(rest, "\n")
		if strings.TrimRight(line, " \t") == delim {
			meta, err := decode(block.String())
			if err != nil {
				return nil, "", false, err
			}
			return meta, next, true, nil
		}
		if !more {
			return nil, "", false, apperr.ErrUnterminated
		}
		block.WriteString(line)
		block.WriteByte('\n')
		rest = next
	}
}

func decode(block string) (map[string]any, error) {
	meta := map[string]any{}
	if strings.TrimSpace(block) == "" {
		return meta, nil
	}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidMetadata, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

// normalizeTitle turns a scalar title (title: 1995) into its string form. A
// list or mapping title is invalid metadata.
func normalizeTitle(meta map[string]any) error {
	raw, ok := meta["title"]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
	case int, int64, uint64, float64, bool:
		meta["title"] = fmt.Sprint(v)
	case time.Time:
		if v.Equal(v.Truncate(24 * time.Hour)) {
			meta["title"] = v.Format(time.DateOnly)
		} else {
			meta["title"] = v.Format(time.RFC3339)
		}
	default:
		return fmt.Errorf("%w: title must be a scalar, got %T", apperr.ErrInvalidMetadata, raw)
	}
	return nil
}

// deriveTitle returns the metadata "title" if present, otherwise the first
// H1 heading outside fenced code, otherwise empty string.
func deriveTitle(meta map[string]any, body string) string {
	if t, ok := meta["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
