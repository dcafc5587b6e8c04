package media

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ParseLocalPlaylist parses a .m3u/.m3u8/.pls file into local paths.
// Relative entries resolve against the playlist's directory; URLs are
// skipped since only local files can be tapped.
func ParseLocalPlaylist(path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsPlaylistExt(ext) {
		return nil, fmt.Errorf("unsupported playlist format %s", ext)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("playlist is not valid UTF-8")
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	baseDir := filepath.Dir(abs)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var raw []string
	if ext == ".pls" {
		raw = parsePLS(scanner)
	} else {
		raw = parseM3U(scanner)
	}

	entries := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.Trim(r, "\"")
		if strings.Contains(r, "://") {
			continue
		}
		entries = append(entries, resolveEntry(r, baseDir))
	}
	return entries, nil
}

// FilterPlayableLocalPaths keeps existing, non-directory, supported files,
// made absolute where possible.
func FilterPlayableLocalPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() || !IsSupportedExt(filepath.Ext(p)) {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}

func parseM3U(scanner *bufio.Scanner) []string {
	var entries []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

func parsePLS(scanner *bufio.Scanner) []string {
	var entries []string
	for scanner.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if val == "" || !isPLSFileKey(key) {
			continue
		}
		entries = append(entries, val)
	}
	return entries
}

func isPLSFileKey(key string) bool {
	rest, ok := strings.CutPrefix(strings.ToLower(key), "file")
	if !ok || rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}

func resolveEntry(raw, baseDir string) string {
	p := filepath.Clean(raw)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
