// Package source provides the document streams fed to the indexer:
// a directory of plain-text files, a Wikipedia XML dump and a Kafka topic.
package source

import (
	"context"
	"io"

	"github.com/rpopa-dp/srch/internal/store"
)

// Source yields documents one at a time.
// Next returns io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context) (*store.Document, error)
	Close() error
}

// Committer is implemented by sources that must acknowledge a document
// after it has been indexed. Commit covers the document last returned by Next.
type Committer interface {
	Commit(ctx context.Context) error
}

// Kind names a source type on the command line.
type Kind string

const (
	KindDir   Kind = "dir"
	KindWiki  Kind = "wiki"
	KindKafka Kind = "kafka"
)

// SliceSource yields a fixed list of documents.
type SliceSource struct {
	docs []store.Document
	pos  int
}

// FromDocuments returns a Source over docs.
func FromDocuments(docs ...store.Document) *SliceSource {
	return &SliceSource{docs: docs}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	doc := s.docs[s.pos]
	s.pos++
	return &doc, nil
}

// Close implements Source.
func (s *SliceSource) Close() error { return nil }

// Sized is implemented by sources that know their document count up front.
type Sized interface {
	Len() int
}
