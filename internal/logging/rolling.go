// Package logging provides rolling log file support.
package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RollingConfig configures rolling log behavior
type RollingConfig struct {
	MaxSize    int64  // Max size in bytes before rotation
	MaxAge     int    // Max days to keep old logs
	MaxBackups int    // Max number of old logs to keep
	Compress   bool   // Compress rotated logs
	BaseName   string // Base log file name
	LogDir     string // Directory for logs
}

// DefaultRollingConfig returns sensible defaults
func DefaultRollingConfig() RollingConfig {
	return RollingConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     7,
		MaxBackups: 5,
		Compress:   true,
		BaseName:   "region-analysis",
		LogDir:     "logs",
	}
}

// RollingWriter is an io.WriteCloser that rotates the underlying file by
// date and by size.
type RollingWriter struct {
	mu          sync.Mutex
	config      RollingConfig
	currentFile *os.File
	currentSize int64
	currentDate string
}

// NewRollingWriter creates a new rolling log writer
func NewRollingWriter(cfg RollingConfig) (*RollingWriter, error) {
	rw := &RollingWriter{config: cfg}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if err := rw.openNewFile(); err != nil {
		return nil, err
	}

	go rw.cleanOldLogs()

	return rw, nil
}

// Write implements io.Writer
func (rw *RollingWriter) Write(p []byte) (n int, err error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.shouldRotate(len(p)) {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = rw.currentFile.Write(p)
	rw.currentSize += int64(n)
	return
}

// Close closes the rolling writer
func (rw *RollingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.currentFile != nil {
		return rw.currentFile.Close()
	}
	return nil
}

func (rw *RollingWriter) shouldRotate(newBytes int) bool {
	if time.Now().Format("2006-01-02") != rw.currentDate {
		return true
	}
	if rw.config.MaxSize > 0 && rw.currentSize+int64(newBytes) > rw.config.MaxSize {
		return true
	}
	return false
}

func (rw *RollingWriter) rotate() error {
	if rw.currentFile != nil {
		rw.currentFile.Close()
		if rw.config.Compress {
			go compressFile(rw.currentPath())
		}
	}
	return rw.openNewFile()
}

func (rw *RollingWriter) openNewFile() error {
	rw.currentDate = time.Now().Format("2006-01-02")
	path := rw.currentPath()

	var currentSize int64
	if info, err := os.Stat(path); err == nil {
		currentSize = info.Size()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	rw.currentFile = f
	rw.currentSize = currentSize
	return nil
}

func (rw *RollingWriter) currentPath() string {
	return filepath.Join(rw.config.LogDir, fmt.Sprintf("%s-%s.log", rw.config.BaseName, rw.currentDate))
}

func compressFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.Create(gzPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzw := gzip.NewWriter(dst)
	gzw.Name = filepath.Base(path)
	gzw.ModTime = time.Now()

	if _, err := io.Copy(gzw, src); err != nil {
		os.Remove(gzPath)
		return err
	}
	if err := gzw.Close(); err != nil {
		os.Remove(gzPath)
		return err
	}

	return os.Remove(path)
}

// cleanOldLogs removes logs older than MaxAge and keeps only MaxBackups
func (rw *RollingWriter) cleanOldLogs() {
	pattern := filepath.Join(rw.config.LogDir, rw.config.BaseName+"-*.log*")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return
	}

	currentPath := rw.currentPath()
	var oldFiles []string
	for _, f := range files {
		if f != currentPath && f != currentPath+".gz" {
			oldFiles = append(oldFiles, f)
		}
	}

	sort.Slice(oldFiles, func(i, j int) bool {
		infoI, _ := os.Stat(oldFiles[i])
		infoJ, _ := os.Stat(oldFiles[j])
		if infoI == nil || infoJ == nil {
			return false
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})

	cutoff := time.Now().AddDate(0, 0, -rw.config.MaxAge)

	for i, f := range oldFiles {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(f)
			continue
		}
		if rw.config.MaxBackups > 0 && i >= rw.config.MaxBackups {
			os.Remove(f)
		}
	}
}
