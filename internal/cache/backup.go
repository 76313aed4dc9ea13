package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupOptions controls the periodic snapshot of the local cache file.
type BackupOptions struct {
	StoragePath   string
	Interval      time.Duration
	RetentionDays int
}

// BackupService copies the cache database to a dated snapshot on an
// interval. The cache holds visits the remote store has not accepted yet,
// so losing the file to corruption means losing field work; a file copy is
// enough because the store is a single small SQLite database.
type BackupService struct {
	cachePath string
	opts      BackupOptions
	logger    *zerolog.Logger
}

func NewBackupService(cachePath string, opts BackupOptions, logger *zerolog.Logger) *BackupService {
	return &BackupService{cachePath: cachePath, opts: opts, logger: logger}
}

// Start runs the snapshot loop until ctx is canceled. The first snapshot
// happens immediately.
func (s *BackupService) Start(ctx context.Context) {
	interval := s.opts.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Str("path", s.opts.StoragePath).Msg("cache backup loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Snapshot(); err != nil {
		s.logger.Error().Err(err).Msg("initial cache backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Snapshot(); err != nil {
				s.logger.Error().Err(err).Msg("cache backup failed")
			}
			s.prune()
		}
	}
}

// Snapshot copies the cache file to a timestamped file under StoragePath.
func (s *BackupService) Snapshot() error {
	if err := os.MkdirAll(s.opts.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("cache_%s.db", time.Now().Format("20060102_150405"))
	target := filepath.Join(s.opts.StoragePath, name)

	source, err := os.Open(s.cachePath)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(target)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}
	s.logger.Info().Str("file", name).Msg("cache snapshot written")
	return nil
}

func (s *BackupService) prune() {
	if s.opts.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.opts.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("could not read backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.opts.RetentionDays)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("deleting expired cache snapshot")
			_ = os.Remove(filepath.Join(s.opts.StoragePath, file.Name()))
		}
	}
}
