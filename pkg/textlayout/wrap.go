package textlayout

import (
	"strings"

	"golang.org/x/image/font"
)

// Measure returns the advance width of s in whole pixels
func Measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// LineHeight returns the ascent plus descent of face in pixels
func LineHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

// Wrap greedily fills lines up to maxWidth pixels. A single word wider than the
// width is broken between characters. maxLines <= 0 means no limit.
func Wrap(text string, face font.Face, maxWidth, maxLines int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(para, face, maxWidth)...)
		if maxLines > 0 && len(lines) >= maxLines {
			return lines[:maxLines]
		}
	}
	return lines
}

// WrapItems wraps each item as its own paragraph, e.g. one founder per line
func WrapItems(items []string, face font.Face, maxWidth, maxLines int) []string {
	return Wrap(strings.Join(items, "\n"), face, maxWidth, maxLines)
}

func wrapParagraph(para string, face font.Face, maxWidth int) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return nil
	}

	var (
		lines   []string
		current string
	)
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if Measure(face, candidate) <= maxWidth {
			current = candidate
			continue
		}

		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if Measure(face, word) <= maxWidth {
			current = word
			continue
		}

		pieces := breakWord(word, face, maxWidth)
		lines = append(lines, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// breakWord splits a word into chunks that each fit maxWidth, at least one rune per chunk
func breakWord(word string, face font.Face, maxWidth int) []string {
	var (
		pieces []string
		chunk  []rune
	)
	for _, r := range word {
		next := append(chunk, r)
		if len(chunk) > 0 && Measure(face, string(next)) > maxWidth {
			pieces = append(pieces, string(chunk))
			chunk = []rune{r}
			continue
		}
		chunk = next
	}
	if len(chunk) > 0 {
		pieces = append(pieces, string(chunk))
	}
	return pieces
}
