package segment

import "strings"

// Windows cuts text into chunks of at most size runes. A chunk ends at the
// last newline in its second half when there is one, so lines stay whole.
func Windows(text string, size int) []string {
	runes := []rune(strings.TrimSpace(text))
	if size <= 0 || len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			for i := end - 1; i > start+size/2; i-- {
				if runes[i] == '\n' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
	}
	return chunks
}
