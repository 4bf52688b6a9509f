// Package report writes the staged console output of a ranking run:
//
//	S1  the query and any invalid terms
//	S2  per line byte and word counts
//	S3  per line score
//	S4  the final ranking
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/scorer"
)

const (
	lineSeparatorWidth    = 3
	sectionSeparatorWidth = 48
	separatorChar         = "-"
)

// Writer formats report sections to an underlying io.Writer. The first
// write error is kept and returned by Err; later writes become no-ops.
type Writer struct {
	w   io.Writer
	err error
}

func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (r *Writer) Err() error {
	return r.err
}

func (r *Writer) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *Writer) separator(width int) {
	r.printf("%s\n", strings.Repeat(separatorChar, width))
}

// Query writes the S1 section. invalid lists the terms that failed
// validation, in input order.
func (r *Writer) Query(terms []string, invalid []string) {
	if len(terms) == 0 {
		r.printf("S1: No query specified, must provide at least one word\n")
		return
	}
	r.printf("S1: query = %s\n", strings.Join(terms, " "))
	for _, term := range invalid {
		r.printf("S1: %s: invalid character(s) in query\n", term)
	}
}

// Line writes the S2 and S3 sections for one scored line.
func (r *Writer) Line(line scorer.ScoredLine) {
	r.separator(lineSeparatorWidth)
	r.printf("%s\n", line.Text)
	r.printf("S2: line = %d, bytes = %d, words = %d\n", line.Sequence, line.Bytes, line.WordCount)
	r.printf("S3: line = %d, score = %.3f\n", line.Sequence, line.Score)
}

// Ranking writes the S4 section.
func (r *Writer) Ranking(ranked []scorer.ScoredLine) {
	r.separator(sectionSeparatorWidth)
	for _, line := range ranked {
		r.printf("S4: line = %d, score = %.3f\n", line.Sequence, line.Score)
		r.printf("%s\n", line.Text)
		r.separator(lineSeparatorWidth)
	}
}
