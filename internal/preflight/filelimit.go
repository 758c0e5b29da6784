package preflight

import (
	"context"
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum required file descriptor limit.
const MinFileDescriptors = 1024

// FileDescriptors checks the open file limit. The watcher holds one
// descriptor per watched directory.
func FileDescriptors() Check {
	return Check{
		Name:     "file_descriptors",
		Required: false,
		Run: func(context.Context) (string, error) {
			var rLimit syscall.Rlimit
			if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
				return "", fmt.Errorf("failed to check file descriptor limit: %w", err)
			}
			msg := fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
			if rLimit.Cur < MinFileDescriptors {
				return "", Failure(msg, "Run 'ulimit -n 10240' to increase the limit")
			}
			return msg, nil
		},
	}
}
