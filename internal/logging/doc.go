// Package logging configures slog for srch. By default warnings and errors
// go to stderr as text. With --debug (or logging.file set) JSON logs are
// written to a size-rotated file, ~/.srch/logs/srch.log unless configured,
// which `srch logs` can tail and follow.
package logging
