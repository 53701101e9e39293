package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext. A name without an extension
// (or a dotfile such as ".env") gets ext appended.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return filepath.Join(dir, name+ext)
}

// SafeName reduces an uploaded file name to a base name without separators or
// leading dots so it can be joined under a storage directory.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimLeft(name, ".")
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "upload"
	}
	return name
}

// Ext returns the extension of name without the leading dot, lowercased.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// AudioPath is where the extracted audio of video is written. A .wav source
// gets a ".16k.wav" suffix so the conversion never overwrites its input.
func AudioPath(video string) string {
	if Ext(video) == "wav" {
		return ReplaceExt(video, ".16k.wav")
	}
	return ReplaceExt(video, ".wav")
}
