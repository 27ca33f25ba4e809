// Package fsops implements the filesystem commands: path classification and
// whole-file text reads and writes.
package fsops

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

// Path kinds reported by PathKind.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// ErrInvalidUTF8 is returned by ReadTextFile when the file is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("stream did not contain valid UTF-8")

// PathKind reports whether path is a folder or a file, following symlinks.
// Anything with metadata that is not a directory counts as a file.
func PathKind(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return KindFolder, nil
	}
	return KindFile, nil
}

// SaveTextFile replaces the contents of path with contents, creating the file
// if it does not exist. Parent directories are not created.
func SaveTextFile(path string, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}

// ReadTextFile returns the full contents of path as text.
func ReadTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", path, ErrInvalidUTF8)
	}
	return string(data), nil
}
