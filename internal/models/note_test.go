package models

import "testing"

func TestNoteID(t *testing.T) {
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{"Note.md", "Note", true},
		{"a-b_c9.md", "a-b_c9", true},
		{"my note.md", "my note", false},
		{"café.md", "café", false},
		{".hidden.md", "", false},
		{".md", "", false},
		{"notes.txt", "", false},
		{"Note.MD", "", false},
	}
	for _, c := range cases {
		id, ok := NoteID(c.name)
		if id != c.id || ok != c.ok {
			t.Errorf("NoteID(%q) = %q, %v; want %q, %v", c.name, id, ok, c.id, c.ok)
		}
	}
}
