// Package parser reads the structure of a note: wikilinks, optional YAML
// frontmatter, #tags and a display title.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/names"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

const fence = "---"

// Document is what Parse learns about a note.
type Document struct {
	Meta  map[string]any // nil without valid frontmatter
	Body  string
	Title string   // frontmatter title, else first "# " heading, else ""
	Links []string // LinkTargets of the body
	Tags  []string // frontmatter tags first, then inline #tags; deduplicated
}

// Parse never fails: a missing or malformed frontmatter block leaves the whole
// content as body.
func Parse(content string) Document {
	meta, body := splitFrontmatter(content)
	return Document{
		Meta:  meta,
		Body:  body,
		Title: title(meta, body),
		Links: LinkTargets(body),
		Tags:  tags(meta, body),
	}
}

// ExtractLinks returns the trimmed inner text of every [[wikilink]] in document
// order. Duplicates are kept, and a blank link such as [[ ]] yields "".
func ExtractLinks(content string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// LinkTargets resolves wikilinks to deduplicated note ids. Aliases are dropped:
// [[Target|Alias]] links to Target.
func LinkTargets(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range ExtractLinks(content) {
		target, _, _ := strings.Cut(raw, "|")
		id := names.CanonicalID(target, "")
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// splitFrontmatter separates a leading "---" fenced YAML block from the body.
func splitFrontmatter(content string) (map[string]any, string) {
	rest := strings.TrimLeft(content, "\r\n")
	first, rest, ok := strings.Cut(rest, "\n")
	if !ok || strings.TrimSpace(first) != fence {
		return nil, content
	}

	var block []string
	for {
		var line string
		line, rest, ok = strings.Cut(rest, "\n")
		if strings.TrimRight(line, "\r") == fence {
			break
		}
		if !ok {
			return nil, content // unterminated
		}
		block = append(block, line)
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(block, "\n")), &meta); err != nil {
		return nil, content
	}
	return meta, strings.TrimLeft(rest, "\r\n")
}

func tags(meta map[string]any, body string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	switch v := meta["tags"].(type) {
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

func title(meta map[string]any, body string) string {
	if s, ok := meta["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, line := range strings.Split(body, "\n") {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
