package util

import (
	"os"
	"path/filepath"
	"strings"
)

// GetFileStem returns the filename without extension.
func GetFileStem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// GetExtension returns the lower-cased extension without the leading dot.
func GetExtension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// EnsureDirectory creates a directory if it doesn't exist.
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DefaultOutputPath returns "<dir>/<stem>.<codec>.<ext>" next to the input,
// e.g. "movie.av1.mkv".
func DefaultOutputPath(inputPath, codecTag, ext string) string {
	stem := GetFileStem(inputPath)
	return filepath.Join(filepath.Dir(inputPath), stem+"."+codecTag+"."+ext)
}
