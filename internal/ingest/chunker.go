// Package ingest loads documentation trees into the store and keeps them
// fresh with a background updater.
package ingest

import (
	"path/filepath"
	"strings"
)

// SplitText splits text into chunks of at most size runes with the given
// overlap carried between consecutive chunks. Chunk boundaries prefer
// paragraph breaks, then line breaks, so documentation sections stay intact
// where possible.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakpoint(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		// A soft break near the window start can land end before
		// start+overlap; never move backwards.
		if next := end - overlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// breakpoint backtracks from end toward start looking for a paragraph break,
// then a line break, within the last quarter of the window. Falls back to the
// hard cut when the window has no break at all.
func breakpoint(runes []rune, start, end int) int {
	limit := end - (end-start)/4

	for _, sep := range []string{"\n\n", "\n"} {
		for i := end; i > limit; i-- {
			if hasSeparatorAt(runes, i-len(sep), sep) {
				return i
			}
		}
	}
	return end
}

func hasSeparatorAt(runes []rune, pos int, sep string) bool {
	if pos < 0 || pos+len(sep) > len(runes) {
		return false
	}
	return string(runes[pos:pos+len(sep)]) == sep
}

// IsSupportedDoc filters paths to typical documentation and source files.
func IsSupportedDoc(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx", ".rst", ".txt", ".adoc",
		".go", ".py", ".ts", ".js", ".java",
		".yaml", ".yml", ".json", ".toml":
		return true
	default:
		return false
	}
}
