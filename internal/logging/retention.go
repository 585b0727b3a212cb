package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const rotatedLayout = "20060102-150405"

// RotateStale moves the active log aside as plansync-<timestamp>.log when it
// was last written on an earlier day than now, then removes rotated files
// older than retentionDays. Zero retention keeps rotated files. It must run
// before the log file is opened for writing.
func RotateStale(dir string, retentionDays int, now time.Time) (rotated string, pruned []string, err error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", nil, nil
	}
	active := filepath.Join(dir, LogFileName)
	info, statErr := os.Stat(active)
	switch {
	case errors.Is(statErr, os.ErrNotExist):
	case statErr != nil:
		return "", nil, fmt.Errorf("stat log file: %w", statErr)
	case info.Size() > 0 && !sameDay(info.ModTime(), now):
		rotated = filepath.Join(dir, rotatedName(info.ModTime()))
		if err := os.Rename(active, rotated); err != nil {
			return "", nil, fmt.Errorf("rotate log file: %w", err)
		}
	}

	if retentionDays <= 0 {
		return rotated, nil, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	matches, err := filepath.Glob(filepath.Join(dir, "plansync-*.log"))
	if err != nil {
		return rotated, nil, err
	}
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, path)
	}
	return rotated, pruned, errors.Join(errs...)
}

func rotatedName(modTime time.Time) string {
	return "plansync-" + modTime.UTC().Format(rotatedLayout) + ".log"
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
