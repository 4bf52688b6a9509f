package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/scorer"
)

func TestQuery(t *testing.T) {
	tests := []struct {
		name    string
		terms   []string
		invalid []string
		want    string
	}{
		{"missing", nil, nil, "S1: No query specified, must provide at least one word\n"},
		{"valid", []string{"the", "cat"}, nil, "S1: query = the cat\n"},
		{
			"invalid",
			[]string{"the", "Cat", "do-g"},
			[]string{"Cat", "do-g"},
			"S1: query = the Cat do-g\n" +
				"S1: Cat: invalid character(s) in query\n" +
				"S1: do-g: invalid character(s) in query\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			New(&sb).Query(tt.terms, tt.invalid)
			if sb.String() != tt.want {
				t.Errorf("got %q, want %q", sb.String(), tt.want)
			}
		})
	}
}

func TestLineAndRanking(t *testing.T) {
	first := scorer.ScoredLine{Sequence: 1, Text: "The cat sat on the mat", Bytes: 22, WordCount: 6, Score: 0.670029}
	third := scorer.ScoredLine{Sequence: 3, Text: "the cat the cat the cat", Bytes: 23, WordCount: 6, Score: 1.036811}

	var sb strings.Builder
	w := New(&sb)
	w.Line(first)
	w.Ranking([]scorer.ScoredLine{third, first})
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}

	want := "---\n" +
		"The cat sat on the mat\n" +
		"S2: line = 1, bytes = 22, words = 6\n" +
		"S3: line = 1, score = 0.670\n" +
		strings.Repeat("-", 48) + "\n" +
		"S4: line = 3, score = 1.037\n" +
		"the cat the cat the cat\n" +
		"---\n" +
		"S4: line = 1, score = 0.670\n" +
		"The cat sat on the mat\n" +
		"---\n"
	if sb.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", sb.String(), want)
	}
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("closed pipe")
}

func TestWriterKeepsFirstError(t *testing.T) {
	fw := &failingWriter{}
	w := New(fw)
	w.Query([]string{"a"}, nil)
	w.Ranking([]scorer.ScoredLine{{Sequence: 1, Text: "a", Score: 1}})
	if w.Err() == nil {
		t.Fatal("expected write error")
	}
	if fw.writes != 1 {
		t.Errorf("writes after failure = %d, want 1", fw.writes)
	}
}
