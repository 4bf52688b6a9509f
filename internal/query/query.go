// Package query holds the validated, immutable set of query terms a stream
// of lines is scored against.
package query

import (
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/linerank/pkg/errors"
)

// Set is an ordered list of lower-case alphanumeric query terms. Order only
// fixes the index of each term's frequency counter.
type Set struct {
	terms []string
}

// New validates every term and returns a Set. If any term carries a byte
// outside [a-z0-9] the whole set is rejected with ErrInvalidQueryTerm naming
// each offending term.
func New(terms []string) (*Set, error) {
	var invalid []string
	for _, term := range terms {
		if !Validate(term) {
			invalid = append(invalid, term)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidTermsError{
			AppError: apperrors.Newf(apperrors.ErrInvalidQueryTerm, http.StatusBadRequest,
				"invalid character(s) in %s", strings.Join(invalid, ", ")),
			Terms: invalid,
		}
	}
	owned := make([]string, len(terms))
	copy(owned, terms)
	return &Set{terms: owned}, nil
}

// Validate reports whether term consists only of lower-case ASCII letters
// and digits.
func Validate(term string) bool {
	for i := 0; i < len(term); i++ {
		c := term[i]
		if !(('a' <= c && c <= 'z') || ('0' <= c && c <= '9')) {
			return false
		}
	}
	return true
}

// Terms returns a copy of the terms in their original order.
func (s *Set) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Term returns the i-th term.
func (s *Set) Term(i int) string {
	return s.terms[i]
}

func (s *Set) Len() int {
	return len(s.terms)
}

func (s *Set) String() string {
	return strings.Join(s.terms, " ")
}

// InvalidTermsError lists every term rejected by New.
type InvalidTermsError struct {
	*apperrors.AppError
	Terms []string
}

func (e *InvalidTermsError) Unwrap() error {
	return e.AppError
}
