package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileWriter appends to a log file shared by successive invocations and
// rotates it when maxSize is exceeded. One backup generation is kept.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	maxSize  int64 // bytes
	written  int64
}

// NewFileWriter opens (or creates) the log file at filePath.
// maxSizeMB caps the file before rotation; <=0 selects 10 MB.
func NewFileWriter(filePath string, maxSizeMB int) (*FileWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	fw := &FileWriter{
		filePath: filePath,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
	}

	if err := fw.openFile(); err != nil {
		return nil, err
	}

	return fw, nil
}

// Write implements io.Writer. Rotates the file if maxSize is exceeded.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.written+int64(len(p)) > fw.maxSize {
		if err := fw.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}

	n, err := fw.file.Write(p)
	fw.written += int64(n)
	return n, err
}

// Close closes the underlying file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file != nil {
		return fw.file.Close()
	}
	return nil
}

func (fw *FileWriter) openFile() error {
	f, err := os.OpenFile(fw.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	fw.file = f
	fw.written = info.Size()
	return nil
}

func (fw *FileWriter) rotate() error {
	if fw.file != nil {
		fw.file.Close()
	}

	os.Rename(fw.filePath, fw.filePath+".1")

	return fw.openFile()
}
