package logstream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timvw/dock-tabs/internal/model"
)

// FormatEntries renders entries as "{timestamp} {content}" lines joined by
// newlines, with no trailing newline.
func FormatEntries(entries []model.LogEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Timestamp + " " + e.Content
	}
	return strings.Join(lines, "\n")
}

// DownloadName returns "{name}-logs-{iso timestamp}.txt". Path separators
// in the container name are replaced so the result is a single file name.
func DownloadName(containerName string, now time.Time) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimPrefix(containerName, "/"))
	if name == "" {
		name = "container"
	}
	return fmt.Sprintf("%s-logs-%s.txt", name, FormatTimestamp(now))
}

// WriteDownload writes entries into dir as one download file and returns
// its path. An empty dir means the working directory.
func WriteDownload(dir, containerName string, entries []model.LogEntry, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, DownloadName(containerName, now))
	if err := os.WriteFile(path, []byte(FormatEntries(entries)), 0o644); err != nil {
		return "", fmt.Errorf("writing log download: %w", err)
	}
	return path, nil
}

// Download writes the current buffer into dir and returns the file path.
func (s *Session) Download(dir string, now time.Time) (string, error) {
	path, err := WriteDownload(dir, s.tab.ContainerName, s.Entries(), now)
	if err != nil {
		return "", err
	}
	s.logger().Info("log download written", "path", path)
	return path, nil
}
