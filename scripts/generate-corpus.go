//go:build ignore

// Package main generates a synthetic document collection for benchmarking
// 'srch index' and 'srch search'.
//
// Word frequencies follow a Zipf distribution, so a few terms occur in most
// documents (near-zero IDF) and a long tail occurs in very few.
//
// Usage:
//
//	go run scripts/generate-corpus.go -docs 10000 -output testdata/bench
//	go run scripts/generate-corpus.go -format wiki -docs 50000 -output testdata/dump.xml
package main

import (
	"bufio"
	"encoding/xml"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory (dir) or file (wiki)")
	format    = flag.String("format", "dir", "Output format: dir (one file per document) or wiki (XML dump)")
	vocabSize = flag.Int("vocab", 20000, "Number of distinct words")
	docWords  = flag.Int("words", 300, "Mean words per document")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var syllables = []string{
	"ka", "lo", "mi", "ne", "ru", "sa", "ti", "vo", "ze", "pa",
	"qui", "dor", "len", "mar", "tos", "bel", "gra", "fen", "hul", "jor",
}

// word returns the i-th vocabulary entry. Low ranks get short words, like
// natural language.
func word(i int) string {
	var b strings.Builder
	for {
		b.WriteString(syllables[i%len(syllables)])
		i /= len(syllables)
		if i == 0 {
			return b.String()
		}
	}
}

type generator struct {
	rng  *rand.Rand
	zipf *rand.Zipf
}

func newGenerator() *generator {
	rng := rand.New(rand.NewSource(*seed))
	return &generator{
		rng:  rng,
		zipf: rand.NewZipf(rng, 1.1, 2, uint64(*vocabSize-1)),
	}
}

func (g *generator) title(i int) string {
	return fmt.Sprintf("%s %s %d", word(int(g.zipf.Uint64())), word(g.rng.Intn(*vocabSize)), i)
}

func (g *generator) body() string {
	n := *docWords/2 + g.rng.Intn(*docWords+1)
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%12 == 0 {
				b.WriteString(".\n")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(word(int(g.zipf.Uint64())))
	}
	b.WriteString(".\n")
	return b.String()
}

func main() {
	flag.Parse()
	g := newGenerator()

	var err error
	switch *format {
	case "dir":
		err = writeDir(g)
	case "wiki":
		err = writeWiki(g)
	default:
		err = fmt.Errorf("unknown format %q (valid options: dir, wiki)", *format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d documents in %s\n", *numDocs, *outputDir)
}

func writeDir(g *generator) error {
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return err
	}
	for i := 0; i < *numDocs; i++ {
		// Spread files over subdirectories to exercise the directory walk.
		sub := filepath.Join(*outputDir, fmt.Sprintf("%03d", i/1000))
		if err := os.MkdirAll(sub, 0755); err != nil {
			return err
		}
		content := g.title(i) + "\n\n" + g.body()
		if err := os.WriteFile(filepath.Join(sub, fmt.Sprintf("doc_%06d.txt", i)), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func writeWiki(g *generator) error {
	if err := os.MkdirAll(filepath.Dir(*outputDir), 0755); err != nil {
		return err
	}
	f, err := os.Create(*outputDir)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	_, _ = w.WriteString("<mediawiki>\n")
	for i := 0; i < *numDocs; i++ {
		_, _ = w.WriteString("  <page>\n    <title>")
		_ = xml.EscapeText(w, []byte(g.title(i)))
		_, _ = fmt.Fprintf(w, "</title>\n    <id>%d</id>\n    <revision>\n      <text>", i+1)
		_ = xml.EscapeText(w, []byte(g.body()))
		_, _ = w.WriteString("</text>\n    </revision>\n  </page>\n")
	}
	_, _ = w.WriteString("</mediawiki>\n")
	return w.Flush()
}
