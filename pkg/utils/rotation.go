package utils

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotationConfig holds configuration for log rotation
type RotationConfig struct {
	Filename string

	// MaxSize in megabytes; 0 never rotates.
	MaxSize int64

	// MaxBackups bounds the rotated files kept; 0 keeps all of them.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// LogRotator is an io.WriteCloser over a log file that is renamed aside
// once it reaches MaxSize.
type LogRotator struct {
	mu sync.Mutex

	config *RotationConfig
	file   *os.File
	size   int64
	now    func() time.Time
}

// NewLogRotator opens config.Filename for appending.
func NewLogRotator(config *RotationConfig) (*LogRotator, error) {
	if config == nil || config.Filename == "" {
		return nil, fmt.Errorf("filename is required")
	}

	lr := &LogRotator{config: config, now: time.Now}
	if err := lr.open(); err != nil {
		return nil, err
	}
	return lr, nil
}

// Write implements io.Writer
func (lr *LogRotator) Write(p []byte) (int, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.file == nil {
		return 0, os.ErrClosed
	}
	if lr.config.MaxSize > 0 && lr.size > 0 && lr.size+int64(len(p)) > lr.config.MaxSize<<20 {
		if err := lr.rotate(); err != nil {
			return 0, fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	n, err := lr.file.Write(p)
	lr.size += int64(n)
	return n, err
}

// Close closes the log file
func (lr *LogRotator) Close() error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.file == nil {
		return nil
	}
	err := lr.file.Close()
	lr.file = nil
	return err
}

// Rotate moves the current file aside immediately.
func (lr *LogRotator) Rotate() error {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.rotate()
}

func (lr *LogRotator) rotate() error {
	if lr.file != nil {
		if err := lr.file.Close(); err != nil {
			return err
		}
		lr.file = nil
	}

	backup := lr.backupName()
	if err := os.Rename(lr.config.Filename, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	if lr.config.Compress {
		if err := compressFile(backup); err != nil {
			fmt.Fprintf(os.Stderr, "failed to compress %s: %v\n", backup, err)
		}
	}
	if err := lr.prune(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prune log backups: %v\n", err)
	}
	return lr.open()
}

func (lr *LogRotator) open() error {
	if err := os.MkdirAll(filepath.Dir(lr.config.Filename), 0750); err != nil {
		return err
	}
	file, err := os.OpenFile(lr.config.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	lr.file = file
	lr.size = info.Size()
	return nil
}

// backupName is <name>-<timestamp><ext>, made unique within the directory.
func (lr *LogRotator) backupName() string {
	dir, base := filepath.Split(lr.config.Filename)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext)
	stamp := lr.now().UTC().Format("2006-01-02T15-04-05.000")

	name := filepath.Join(dir, prefix+"-"+stamp+ext)
	for i := 1; exists(name) || exists(name+".gz"); i++ {
		name = filepath.Join(dir, fmt.Sprintf("%s-%s.%d%s", prefix, stamp, i, ext))
	}
	return name
}

// prune removes the oldest backups beyond MaxBackups.
func (lr *LogRotator) prune() error {
	if lr.config.MaxBackups <= 0 {
		return nil
	}
	backups, err := lr.Backups()
	if err != nil {
		return err
	}
	for len(backups) > lr.config.MaxBackups {
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

// Backups lists rotated files oldest first.
func (lr *LogRotator) Backups() ([]string, error) {
	dir, base := filepath.Split(lr.config.Filename)
	if dir == "" {
		dir = "."
	}
	prefix := strings.TrimSuffix(base, filepath.Ext(base)) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.Name() != base && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, filepath.Join(dir, entry.Name()))
		}
	}
	// Timestamps sort lexically.
	sort.Strings(names)
	return names, nil
}

func compressFile(name string) error {
	src, err := os.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(name+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		_ = dst.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
