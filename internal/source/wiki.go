package source

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strings"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/store"
)

// WikiSource streams articles from a MediaWiki XML dump
// (https://dumps.wikimedia.org/enwiki/).
//
// A document is emitted once both a non-empty <title> and a non-empty <text>
// have been seen; both then reset. Only the first non-empty value of each is
// kept between emissions.
type WikiSource struct {
	decoder *xml.Decoder
	closer  io.Closer
	max     int
	emitted int
	broken  bool
}

// NewWikiSource opens the dump at path. maxDocs <= 0 reads every article.
func NewWikiSource(path string, maxDocs int) (*WikiSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, srcherr.New(srcherr.ErrCodeSourceNotFound, "dump not found: "+path, err)
		}
		return nil, srcherr.SourceReadError("failed to open dump", err).WithDetail("path", path)
	}
	s := NewWikiReader(f, maxDocs)
	s.closer = f
	return s, nil
}

// NewWikiReader streams a dump from r.
func NewWikiReader(r io.Reader, maxDocs int) *WikiSource {
	return &WikiSource{decoder: xml.NewDecoder(r), max: maxDocs}
}

// Next implements Source.
func (s *WikiSource) Next(ctx context.Context) (*store.Document, error) {
	// The decoder cannot resume after a syntax error.
	if (s.max > 0 && s.emitted >= s.max) || s.broken {
		return nil, io.EOF
	}

	var title, body string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := s.decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			s.broken = true
			return nil, srcherr.SourceReadError("failed to parse dump", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "title":
			text, err := s.text(start)
			if err != nil {
				s.broken = true
				return nil, err
			}
			if title == "" {
				title = text
			}
		case "text":
			text, err := s.text(start)
			if err != nil {
				s.broken = true
				return nil, err
			}
			if body == "" {
				body = text
			}
		default:
			continue
		}

		if title != "" && body != "" {
			s.emitted++
			return &store.Document{Title: title, Body: body}, nil
		}
	}
}

// text collects the character data of the element opened by start.
func (s *WikiSource) text(start xml.StartElement) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := s.decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", srcherr.SourceReadError("truncated <"+start.Name.Local+"> element", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return sb.String(), nil
}

// Close implements Source.
func (s *WikiSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
