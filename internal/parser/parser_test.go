package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	d := Parse("---\ntitle: Hello\ntags:\n  - go\n  - ansuz\n---\n# Hello\nBody text #ansuz #new.\n")
	if d.Title != "Hello" {
		t.Errorf("title = %q, want %q", d.Title, "Hello")
	}
	if diff := cmp.Diff([]string{"go", "ansuz", "new"}, d.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if d.Body != "# Hello\nBody text #ansuz #new.\n" {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	d := Parse("# Just a heading\nSome text with [[Other Note]].\n")
	if d.Meta != nil {
		t.Errorf("expected nil frontmatter, got %v", d.Meta)
	}
	if d.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", d.Title, "Just a heading")
	}
	if diff := cmp.Diff([]string{"OtherNote"}, d.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FrontmatterFallbacks(t *testing.T) {
	cases := map[string]string{
		"invalid yaml": "---\n: invalid: yaml: {{{\n---\nBody\n",
		"unterminated": "---\ntitle: x\nBody\n",
		"inline fence": "--- not a fence\nBody\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			d := Parse(in)
			if d.Meta != nil {
				t.Errorf("expected nil frontmatter, got %v", d.Meta)
			}
			if d.Body != in {
				t.Errorf("body = %q, want whole input", d.Body)
			}
		})
	}
}

func TestParse_NormalizedContent(t *testing.T) {
	// Stored notes are whitespace-collapsed onto one line.
	d := Parse("# Title with #tag and [[Link]]")
	if d.Title != "Title with #tag and [[Link]]" {
		t.Errorf("title = %q", d.Title)
	}
	if diff := cmp.Diff([]string{"tag"}, d.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Link"}, d.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractLinks(t *testing.T) {
	got := ExtractLinks("See [[Alpha]] and [[ Beta ]].")
	if diff := cmp.Diff([]string{"Alpha", "Beta"}, got); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractLinks_KeepsDuplicatesAndOrder(t *testing.T) {
	got := ExtractLinks("[[b]] then [[a]] then [[b]] and [[Note B|alias]]")
	want := []string{"b", "a", "b", "Note B|alias"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractLinks_BlankLinkIsKept(t *testing.T) {
	got := ExtractLinks("see [[ ]] and [[]] then [[x]]")
	if diff := cmp.Diff([]string{"", "x"}, got); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	if targets := LinkTargets("see [[ ]]"); len(targets) != 0 {
		t.Errorf("blank link resolved to targets %v", targets)
	}
}

func TestLinkTargets_DedupAndAlias(t *testing.T) {
	got := LinkTargets("See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again, [[|alias]].")
	if diff := cmp.Diff([]string{"NoteA", "NoteB"}, got); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestTags_InlineAndFrontmatter(t *testing.T) {
	got := tags(map[string]any{"tags": []any{"alpha"}}, "Some text #beta and #alpha again.")
	if diff := cmp.Diff([]string{"alpha", "beta"}, got); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	got = tags(map[string]any{"tags": "one, #two,,one"}, "")
	if diff := cmp.Diff([]string{"one", "two"}, got); diff != "" {
		t.Errorf("string tags mismatch (-want +got):\n%s", diff)
	}
}

func TestTitle_FrontmatterOverH1(t *testing.T) {
	if got := title(map[string]any{"title": "FM Title"}, "# H1 Title\ntext"); got != "FM Title" {
		t.Errorf("title = %q, want %q", got, "FM Title")
	}
}

func TestTitle_H1Fallback(t *testing.T) {
	if got := title(nil, "some text\n# My Heading\nmore"); got != "My Heading" {
		t.Errorf("title = %q, want %q", got, "My Heading")
	}
	if got := title(nil, "## Only h2"); got != "" {
		t.Errorf("title = %q, want empty", got)
	}
}
