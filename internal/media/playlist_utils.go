package media

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ParsePlaylist reads an M3U / extended M3U list of media locations, one per
// line. Comment and directive lines (starting with '#') and blank lines are
// skipped; entries with unsupported extensions are skipped too. Relative paths
// are resolved against baseDir; URLs are kept as written.
func ParsePlaylist(r io.Reader, baseDir string) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kind, ok := KindOf(line)
		if !ok {
			continue
		}
		if !isURL(line) && !filepath.IsAbs(line) && baseDir != "" {
			line = filepath.Join(baseDir, line)
		}
		out = append(out, Entry{URL: line, Kind: kind})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	return out, nil
}

// BuildPlaylist writes entries as an extended M3U document.
func BuildPlaylist(entries []Entry) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("#EXTINF:-1,%s\n", e.Kind))
		b.WriteString(e.URL)
		b.WriteString("\n")
	}
	return b.String()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://")
}
