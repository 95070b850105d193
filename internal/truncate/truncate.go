// Package truncate bounds the visible growth of a streaming answer.
//
// A runaway backend stream must not grow an in-memory answer without limit.
// The budget counts CJK ideographs outside <think> reasoning spans; reasoning
// spans are bounded internal commentary and are always preserved verbatim.
package truncate

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// DefaultBudget is the default visible-ideograph budget per answer.
const DefaultBudget = 2048

// segment is one alternating slice of the input: a reasoning span or plain text.
type segment struct {
	think   bool
	content string
}

// splitSegments parses content into alternating think/text segments. An
// unterminated trailing <think> is a single reasoning segment to end of input.
func splitSegments(content string) []segment {
	var segs []segment
	remaining := content

	for len(remaining) > 0 {
		start := strings.Index(remaining, thinkOpen)
		if start == -1 {
			segs = append(segs, segment{content: remaining})
			break
		}
		if start > 0 {
			segs = append(segs, segment{content: remaining[:start]})
		}
		end := strings.Index(remaining[start:], thinkClose)
		if end == -1 {
			segs = append(segs, segment{think: true, content: remaining[start:]})
			break
		}
		end += start + len(thinkClose)
		segs = append(segs, segment{think: true, content: remaining[start:end]})
		remaining = remaining[end:]
	}

	return segs
}

// isVisible reports whether r counts against the budget.
func isVisible(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fa5
}

// countVisible returns the number of budget-counted runes in text.
func countVisible(text string) int {
	n := 0
	for _, r := range text {
		if isVisible(r) {
			n++
		}
	}
	return n
}

// cutVisible cuts text at the exact rune boundary where the budget is
// exhausted, returning the kept prefix and how many visible runes it used.
func cutVisible(text string, budget int) (string, int) {
	if budget <= 0 {
		return "", 0
	}
	used := 0
	cut := 0
	for i, r := range text {
		if !isVisible(r) {
			continue
		}
		used++
		cut = i + len(string(r))
		if used >= budget {
			break
		}
	}
	return text[:cut], used
}

// Truncate returns content shortened so that at most budget visible runes
// remain outside reasoning spans. Reasoning spans are passed through in full.
// Under-budget content is returned unchanged; this runs on every delta, so
// the under-budget path is a single counting pass.
func Truncate(content string, budget int) string {
	segs := splitSegments(content)

	total := 0
	for _, s := range segs {
		if !s.think {
			total += countVisible(s.content)
		}
	}
	if total <= budget {
		return content
	}

	var b strings.Builder
	used := 0
	exhausted := false
	for _, s := range segs {
		if exhausted {
			// Only an unterminated trailing reasoning span survives the cut.
			if s.think && !strings.Contains(s.content, thinkClose) {
				b.WriteString(s.content)
			}
			break
		}
		if s.think {
			b.WriteString(s.content)
			continue
		}
		avail := budget - used
		n := countVisible(s.content)
		if n <= avail {
			b.WriteString(s.content)
			used += n
			continue
		}
		kept, keptUsed := cutVisible(s.content, avail)
		b.WriteString(kept)
		used += keptUsed
		exhausted = true
	}
	return b.String()
}

// IsTruncated reports whether the visible rune count outside reasoning spans
// has reached the budget. Content inside a trailing unterminated <think> is
// excluded the same way Truncate excludes it.
func IsTruncated(content string, budget int) bool {
	n := 0
	for _, s := range splitSegments(content) {
		if s.think {
			continue
		}
		n += countVisible(s.content)
		if n >= budget {
			return true
		}
	}
	// Budget 0 means any content is at the limit.
	return n >= budget
}
