package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenFile creates a timestamped log file in logDir. The caller closes it.
func OpenFile(logDir string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	filename := fmt.Sprintf("ab-av1_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}
	return file, nil
}
