package twitter

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const MaxTweetLength = 280

// SplitThread breaks text into tweets of at most limit runes. Text that fits
// is returned as is; longer text is split on line and word boundaries and
// each part gets a " (i/n)" counter.
func SplitThread(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	// Reserve room for the " (i/n)" counter and grow it until the counter
	// for the resulting part count fits.
	reserve := counterWidth(9)
	for {
		parts := split(text, max(limit-reserve, 1))
		if len(parts) == 1 {
			return parts
		}
		if need := counterWidth(len(parts)); need > reserve {
			reserve = need
			continue
		}
		for i := range parts {
			parts[i] += fmt.Sprintf(" (%d/%d)", i+1, len(parts))
		}
		return parts
	}
}

// counterWidth is the widest " (i/n)" suffix in a thread of n parts.
func counterWidth(n int) int {
	return len(fmt.Sprintf(" (%d/%d)", n, n))
}

func split(text string, budget int) []string {
	var (
		parts []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if n > 0 {
			parts = append(parts, strings.TrimSpace(cur.String()))
		}
		cur.Reset()
		n = 0
	}
	add := func(sep, word string) {
		w := utf8.RuneCountInString(word)
		if n > 0 && n+len(sep)+w > budget {
			flush()
		}
		if n > 0 {
			cur.WriteString(sep)
			n += len(sep)
		}
		for w > budget {
			r := []rune(word)
			cur.WriteString(string(r[:budget-n]))
			word = string(r[budget-n:])
			w = len(r) - (budget - n)
			n = budget
			flush()
		}
		cur.WriteString(word)
		n += w
	}

	lineSep := ""
	for _, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			lineSep = "\n\n"
			continue
		}
		for i, word := range words {
			sep := " "
			if i == 0 {
				sep = lineSep
			}
			add(sep, word)
		}
		lineSep = "\n"
	}
	flush()
	return parts
}
