package preflight

import (
	"context"
	"fmt"
	"syscall"
)

// MinDiskSpaceBytes is the minimum required free disk space (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// DiskSpace checks the free space on the file system holding dir.
func DiskSpace(dir string) Check {
	return Check{
		Name:     "disk_space",
		Required: true,
		Run: func(context.Context) (string, error) {
			var stat syscall.Statfs_t
			if err := syscall.Statfs(nearestExisting(dir), &stat); err != nil {
				return "", fmt.Errorf("failed to check disk space: %w", err)
			}
			available := stat.Bavail * uint64(stat.Bsize)
			msg := fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))
			if available < MinDiskSpaceBytes {
				return "", Failure(msg, "Free space or point storage.path at another disk")
			}
			return msg, nil
		},
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
