package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FindOlderThan lists regular files directly under dir with extension ext
// (case-insensitive, with or without dot) last modified before cutoff.
// A missing dir yields no files.
func FindOlderThan(dir, ext string, cutoff time.Time) ([]string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var ret []string
	for _, entry := range entries {
		if entry.IsDir() || Ext(entry.Name()) != ext {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			ret = append(ret, filepath.Join(dir, entry.Name()))
		}
	}
	return ret, nil
}

// Stat reports whether path is an existing regular file and its size.
func Stat(path string) (bool, int64) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, 0
	}
	return true, info.Size()
}

// FindStaleAudio lists extracted audio under dir older than cutoff. Only .wav
// files that are the AudioPath of a sibling file count, so an uploaded .wav
// source is never returned.
func FindStaleAudio(dir string, cutoff time.Time) ([]string, error) {
	stale, err := FindOlderThan(dir, "wav", cutoff)
	if err != nil || len(stale) == 0 {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	derived := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		derived[AudioPath(path)] = true
	}

	ret := stale[:0]
	for _, path := range stale {
		if derived[path] {
			ret = append(ret, path)
		}
	}
	return ret, nil
}
