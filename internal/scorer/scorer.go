// Package scorer computes the relevance of a single line of text against a
// query set:
//
//	score = Σ ln(FrequencyOffset + freq_i) / ln(WordCountOffset + words)
//
// where freq_i counts the words that query term i is a prefix of.
package scorer

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/query"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/tokenizer"
)

const (
	FrequencyOffset = 1.0
	WordCountOffset = 8.5
)

// ScoredLine is one input line after analysis.
type ScoredLine struct {
	Sequence  int     `json:"line"`
	Text      string  `json:"text"`
	Bytes     int     `json:"bytes"`
	WordCount int     `json:"words"`
	Score     float64 `json:"score"`
}

// Analysis is the intermediate result of scoring a line.
type Analysis struct {
	WordCount   int
	Frequencies []int
	Score       float64
}

type Scorer struct {
	query *query.Set
}

func New(q *query.Set) *Scorer {
	return &Scorer{query: q}
}

func (s *Scorer) Query() *query.Set {
	return s.query
}

// Analyze tokenizes text and computes its word count, per-term prefix match
// frequencies and score. A word may count towards several terms.
func (s *Scorer) Analyze(text string) Analysis {
	freq := make([]int, s.query.Len())
	words := 0
	for pos := 0; pos < len(text); {
		var word string
		word, pos = tokenizer.NextWord(text, pos)
		if word == "" {
			break
		}
		words++
		for i := range freq {
			if tokenizer.IsPrefix(word, s.query.Term(i)) {
				freq[i]++
			}
		}
	}
	return Analysis{
		WordCount:   words,
		Frequencies: freq,
		Score:       Score(freq, words),
	}
}

// Line scores text and wraps it with its position in the stream.
func (s *Scorer) Line(seq int, text string) ScoredLine {
	a := s.Analyze(text)
	return ScoredLine{
		Sequence:  seq,
		Text:      text,
		Bytes:     len(text),
		WordCount: a.WordCount,
		Score:     a.Score,
	}
}

// Score applies the relevance formula to precomputed counts.
func Score(frequencies []int, wordCount int) float64 {
	var sum float64
	for _, f := range frequencies {
		sum += math.Log(FrequencyOffset + float64(f))
	}
	return sum / math.Log(WordCountOffset+float64(wordCount))
}
