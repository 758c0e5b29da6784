// Package preflight runs environment checks before srch writes or serves an
// index.
//
// Built-in checks cover free disk space and write access where the index
// lives, and the file descriptor limit. Callers add their own checks for
// backends such as Postgres, Redis or Kafka:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.DiskSpace(dir), preflight.WritePermissions(dir))
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
