package models

import "testing"

func TestNormalizeTarget(t *testing.T) {
	cases := map[string]string{
		"intro":             "intro",
		"intro.md":          "intro",
		"./intro.md":        "intro",
		"/intro.html":       "intro",
		"chapters/vue.md":   "chapters/vue",
		`chapters\solid.md`: "chapters/solid",
		" spaced.markdown ": "spaced",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeTarget(in); got != want {
			t.Errorf("NormalizeTarget(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDocument_LayoutAndDescription(t *testing.T) {
	d := &Document{ID: "vue", Metadata: map[string]any{"layout": "wide", "description": "Vue 3"}}
	if d.Layout() != "wide" || d.Description() != "Vue 3" {
		t.Errorf("layout = %q, description = %q", d.Layout(), d.Description())
	}
	if d.OutputPath() != "vue.html" {
		t.Errorf("output = %q", d.OutputPath())
	}

	bare := &Document{ID: "intro"}
	if bare.Layout() != "" {
		t.Errorf("bare layout = %q", bare.Layout())
	}
}
