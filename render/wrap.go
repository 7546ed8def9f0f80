package render

import "strings"

// WrapText greedily packs words onto lines while measure(line) <= maxWidth.
// The word that overflows starts the next line; a single word wider than
// maxWidth gets a line of its own.
func WrapText(text string, maxWidth int, measure func(string) int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := ""
	for _, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && measure(candidate) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
