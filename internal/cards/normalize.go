package cards

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	styleBlockRe = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	divRe        = regexp.MustCompile(`(?i)</?div\b[^>]*>`)
	mediaRe      = regexp.MustCompile(`\[(?:sound|anki:play):[^\]]*\]`)
)

var entities = []struct {
	name []byte
	char byte
}{
	{[]byte("&nbsp;"), ' '},
	{[]byte("&amp;"), '&'},
	{[]byte("&lt;"), '<'},
	{[]byte("&gt;"), '>'},
	{[]byte("&quot;"), '"'},
}

// maxPasses bounds Normalize. Decoding can turn escaped markup into tags,
// which only a later pass strips; two passes settle everything except input
// crafted to rebuild entities out of removed style blocks or media.
const maxPasses = 3

// Normalize turns rendered card HTML into plain text.
//
// Style blocks are dropped with their contents, div boundaries become line
// breaks, other tags become spaces, media directives are removed and the five
// common entities are decoded. Lines are trimmed and empty lines dropped.
//
// Escaped markup is treated as markup: "&lt;b&gt;x&lt;/b&gt;" becomes "x", so
// the output never contains tags and normalizing it again changes nothing.
func Normalize(html string) string {
	text := html
	for i := 0; i < maxPasses; i++ {
		next := normalizePass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func normalizePass(s string) string {
	s = styleBlockRe.ReplaceAllString(s, "")
	s = divRe.ReplaceAllString(s, "\n")
	s = stripTags(s)
	s = mediaRe.ReplaceAllString(s, "")
	s = decodeEntities(s)

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// stripTags replaces every "<...>" run that holds no other angle bracket with
// a space, repeating until none is left, so "<<b>i>" becomes " ". It runs in
// one scan: open holds the positions in out of '<' that a later '>' may close.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	out := make([]byte, 0, len(s))
	var open []int
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '<':
			open = append(open, len(out))
			out = append(out, c)
		case '>':
			if n := len(open); n > 0 && open[n-1] < len(out)-1 {
				out = append(out[:open[n-1]], ' ')
				open = open[:n-1]
				continue
			}
			// A bare '>' can never sit inside a tag, so nothing before it closes.
			open = open[:0]
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// decodeEntities decodes the five entities, including ones that only appear
// after decoding ("&amp;lt;" becomes "<"), in one scan. A decoded character is
// never ';', so each ';' completes at most one entity.
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] != ';' {
			continue
		}
		for _, e := range entities {
			if bytes.HasSuffix(out, e.name) {
				out = append(out[:len(out)-len(e.name)], e.char)
				break
			}
		}
	}
	return string(out)
}
