package frontmatter

import (
	"errors"
	"testing"

	"github.com/starford/quire/internal/apperr"
)

func TestParse_MetadataAndBody(t *testing.T) {
	input := []byte("---\nlayout: default\ntitle: Vue\n---\n# Heading\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasMetadata {
		t.Error("expected HasMetadata")
	}
	if r.Metadata["layout"] != "default" {
		t.Errorf("layout = %v", r.Metadata["layout"])
	}
	if r.Title != "Vue" {
		t.Errorf("title = %q, want %q", r.Title, "Vue")
	}
	if r.Body != "# Heading\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoMetadata(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasMetadata {
		t.Error("expected no metadata block")
	}
	if len(r.Metadata) != 0 {
		t.Errorf("expected empty metadata, got %v", r.Metadata)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q", r.Title)
	}
}

func TestParse_BlockMustBeAtStart(t *testing.T) {
	input := []byte("\n---\ntitle: late\n---\nbody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasMetadata {
		t.Error("a block after a blank line is body, not metadata")
	}
}

func TestParse_Unterminated(t *testing.T) {
	cases := []string{
		"---",
		"---\n",
		"---\ntitle: Vue\n",
		"---\ntitle: Vue\nbody without close\n",
	}
	for _, in := range cases {
		_, err := Parse([]byte(in))
		if !errors.Is(err, apperr.ErrUnterminated) {
			t.Errorf("Parse(%q) err = %v, want ErrUnterminated", in, err)
		}
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, apperr.ErrInvalidMetadata) {
		t.Fatalf("err = %v, want ErrInvalidMetadata", err)
	}
}

func TestParse_NonMappingYAML(t *testing.T) {
	_, err := Parse([]byte("---\n- a\n- b\n---\nBody\n"))
	if !errors.Is(err, apperr.ErrInvalidMetadata) {
		t.Fatalf("err = %v, want ErrInvalidMetadata", err)
	}
}

func TestParse_ScalarTitleBecomesString(t *testing.T) {
	cases := map[string]string{
		"---\ntitle: 1995\n---\n":     "1995",
		"---\ntitle: 2.5\n---\n":      "2.5",
		"---\ntitle: true\n---\n":     "true",
		"---\ntitle: \"1995\"\n---\n": "1995",
	}
	for in, want := range cases {
		r, err := Parse([]byte(in))
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if r.Title != want {
			t.Errorf("Parse(%q).Title = %q, want %q", in, r.Title, want)
		}
		if got, _ := r.Metadata["title"].(string); got != want {
			t.Errorf("Parse(%q) metadata title = %#v", in, r.Metadata["title"])
		}
	}
}

func TestParse_CompositeTitleIsInvalid(t *testing.T) {
	for _, in := range []string{
		"---\ntitle: [a, b]\n---\n",
		"---\ntitle:\n  en: Hello\n---\n",
	} {
		if _, err := Parse([]byte(in)); !errors.Is(err, apperr.ErrInvalidMetadata) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidMetadata", in, err)
		}
	}
}

func TestParse_EmptyBlockAndEmptyBody(t *testing.T) {
	r, err := Parse([]byte("---\n---\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasMetadata || len(r.Metadata) != 0 {
		t.Errorf("metadata = %v, had = %v", r.Metadata, r.HasMetadata)
	}
	if r.Body != "" {
		t.Errorf("body = %q, want empty", r.Body)
	}
}

func TestParse_MetadataOnlyNoTrailingNewline(t *testing.T) {
	r, err := Parse([]byte("---\nlayout: default\n---"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Body != "" {
		t.Errorf("body = %q, want empty", r.Body)
	}
}

func TestParse_CRLFAndBOM(t *testing.T) {
	r, err := Parse([]byte("\xef\xbb\xbf---\r\ntitle: Svelte\r\n---\r\nText\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Svelte" {
		t.Errorf("title = %q", r.Title)
	}
	if r.Body != "Text\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestDeriveTitle_MetadataOverH1(t *testing.T) {
	title := deriveTitle(map[string]any{"title": "FM Title"}, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_SkipsFencedCode(t *testing.T) {
	body := "```sh\n# not a heading\n```\n# Real Heading\n"
	if got := deriveTitle(nil, body); got != "Real Heading" {
		t.Errorf("title = %q", got)
	}
}
