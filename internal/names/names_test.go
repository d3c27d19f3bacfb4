package names

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"valid_name":        "valid_name",
		"invalid name.txt":  "invalidnametxt",
		"123@file!":         "123file",
		"hello_world":       "hello_world",
		"dash-ok":           "dash-ok",
		"../../etc/passwd":  "etcpasswd",
		"Ünïcödé":           "ncd",
		"":                  "",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeIdentifier(in), "input %q", in)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	require.Equal(t, "hello world", NormalizeWhitespace("   hello    world   "))
	require.Equal(t, "singleword", NormalizeWhitespace("singleword"))
	require.Equal(t, "multiple spaces here", NormalizeWhitespace("multiple    spaces   here"))
	require.Equal(t, "a b c", NormalizeWhitespace("a\n\tb\r\n c"))
	require.Equal(t, "", NormalizeWhitespace(" \n\t "))
}

func TestCanonicalID(t *testing.T) {
	require.Equal(t, "Hello-world-example", CanonicalID("", "Hello world example with [[Link]]"))
	require.Equal(t, "MyTitle", CanonicalID("My Title!", "ignored content here"))
	require.Equal(t, "My_Title", CanonicalID("My_Title", "ignored content here"))
	require.Equal(t, "Title-here", CanonicalID("", "# Title here"))
	require.Equal(t, "one-two", CanonicalID("", "one two"))
	require.Equal(t, "fallback-to-content", CanonicalID("?!", "fallback to content"))
	require.Equal(t, "", CanonicalID("", ""))
}

func TestUntitledTitle(t *testing.T) {
	a, b := UntitledTitle(), UntitledTitle()
	require.True(t, strings.HasPrefix(a, "untitled_"))
	require.NotEqual(t, a, b)
	require.Equal(t, a, SanitizeIdentifier(a))
}

func TestSanitizeIdentifier_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		once := SanitizeIdentifier(s)
		if twice := SanitizeIdentifier(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
		for _, r := range once {
			if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-", r) {
				t.Fatalf("disallowed rune %q in %q", r, once)
			}
		}
	})
}

func TestNormalizeWhitespace_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		once := NormalizeWhitespace(s)
		if twice := NormalizeWhitespace(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
		if strings.Contains(once, "  ") {
			t.Fatalf("double space left in %q", once)
		}
	})
}

func TestCanonicalID_IsSanitized(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		title := rapid.String().Draw(t, "title")
		content := rapid.String().Draw(t, "content")
		id := CanonicalID(title, content)
		if SanitizeIdentifier(id) != id {
			t.Fatalf("id %q is not sanitized", id)
		}
	})
}
