package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/store"
)

// DirSource yields one document per plain-text file. The document title
// is the file path.
type DirSource struct {
	paths []string
	pos   int
}

// NewDirSource resolves pattern to a list of files. A directory selects every
// regular file beneath it, skipping hidden entries; anything else is treated
// as a glob pattern.
func NewDirSource(pattern string) (*DirSource, error) {
	info, err := os.Stat(pattern)
	if err == nil && info.IsDir() {
		paths, err := walkFiles(pattern)
		if err != nil {
			return nil, srcherr.SourceReadError("failed to walk directory", err).WithDetail("path", pattern)
		}
		return &DirSource{paths: paths}, nil
	}

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, srcherr.ValidationError("invalid glob pattern", err).WithDetail("pattern", pattern)
	}

	files := paths[:0]
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return nil, srcherr.New(srcherr.ErrCodeSourceNotFound, "no files match "+pattern, nil).
			WithSuggestion("Pass a directory or a glob such as 'docs/*.txt'")
	}
	slices.Sort(files)

	return &DirSource{paths: files}, nil
}

func walkFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// Len returns the number of files the source will yield.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Next implements Source.
func (s *DirSource) Next(ctx context.Context) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.pos]
	s.pos++
	return ReadFile(path)
}

// Close implements Source.
func (s *DirSource) Close() error { return nil }

// ReadFile loads a single file as a document.
func ReadFile(path string) (*store.Document, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, srcherr.SourceReadError("failed to read file", err).WithDetail("path", path)
	}
	return &store.Document{Title: path, Body: string(body)}, nil
}
