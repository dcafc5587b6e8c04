// Package media knows which local files the player can visualize.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

var playlistExts = map[string]bool{
	".m3u":  true,
	".m3u8": true,
	".pls":  true,
}

// IsSupportedExt reports whether ext is a decodable audio format.
func IsSupportedExt(ext string) bool {
	return audioExts[strings.ToLower(ext)]
}

// IsPlaylistExt reports whether ext is a playlist format.
func IsPlaylistExt(ext string) bool {
	return playlistExts[strings.ToLower(ext)]
}

// SupportedExtsList returns a human-readable list of audio formats.
func SupportedExtsList() string {
	return ".mp3, .wav, .flac, .ogg"
}

// Resolve expands path into playable tracks: a playlist yields its local
// entries, a directory its audio files in name order, an audio file itself.
func Resolve(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var candidates []string
	switch {
	case info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		for _, e := range entries {
			candidates = append(candidates, filepath.Join(path, e.Name()))
		}
		sort.Strings(candidates)
	case IsPlaylistExt(filepath.Ext(path)):
		candidates, err = ParseLocalPlaylist(path)
		if err != nil {
			return nil, err
		}
	default:
		if !IsSupportedExt(filepath.Ext(path)) {
			return nil, fmt.Errorf("unsupported file %s (supported: %s)", filepath.Base(path), SupportedExtsList())
		}
		candidates = []string{path}
	}

	tracks := FilterPlayableLocalPaths(candidates)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no playable files in %s", path)
	}
	return tracks, nil
}
