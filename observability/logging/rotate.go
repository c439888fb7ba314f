package logging

import (
	"io"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Output returns the sink for the daemon log: stdout, mirrored into a size
// rotated file when path is set. The returned closer releases the file.
func Output(path string, maxSizeMB, maxBackups int) (io.Writer, func() error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return os.Stdout, func() error { return nil }
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, file), file.Close
}
