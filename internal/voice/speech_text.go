package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spokenURLPattern        = regexp.MustCompile(`https?://\S+`)
	spokenFencedCodePattern = regexp.MustCompile("(?s)```.*?```")
	spokenInlineCodePattern = regexp.MustCompile("`([^`]*)`")
	spokenLinkPattern       = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	spokenBulletPattern     = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+`)
	spokenGapPattern        = regexp.MustCompile(`\s+([.,!?:;।॥])`)
)

var spokenMarkup = strings.NewReplacer(
	"*", " ",
	"_", " ",
	"\\", " ",
	"|", " ",
	"#", " ",
	"~", " ",
	"<", " ",
	">", " ",
)

// spokenText strips markdown, links and emoji from a model reply so the
// synthesizer reads only words. Indic scripts pass through untouched.
func spokenText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = spokenFencedCodePattern.ReplaceAllString(raw, " ")
	raw = spokenInlineCodePattern.ReplaceAllString(raw, "$1")
	raw = spokenLinkPattern.ReplaceAllString(raw, "$1")
	raw = spokenURLPattern.ReplaceAllString(raw, " ")
	raw = spokenBulletPattern.ReplaceAllString(raw, "")
	raw = spokenMarkup.Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sk):
			continue
		case isSpokenPunctuation(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r) || unicode.Is(unicode.Sm, r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(spokenGapPattern.ReplaceAllString(b.String(), "$1"))
}

func isSpokenPunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')', '/', '।', '॥', '₹', '%':
		return true
	default:
		return false
	}
}
