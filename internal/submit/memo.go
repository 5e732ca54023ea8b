package submit

import (
	"encoding/json"
	"fmt"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
)

// memoEntry is the cached form of an rna.Outcome.
type memoEntry struct {
	Kind string `json:"kind"`

	ParseKind  rna.ParseErrorKind `json:"parse_kind,omitempty"`
	ParseBlock int                `json:"parse_block,omitempty"`

	Errors []memoError `json:"errors,omitempty"`

	Name                string     `json:"name,omitempty"`
	Separator           string     `json:"separator,omitempty"`
	Sequence            string     `json:"sequence,omitempty"`
	Structure           string     `json:"structure,omitempty"`
	Repaired            string     `json:"repaired,omitempty"`
	FixSuggested        bool       `json:"fix_suggested,omitempty"`
	MismatchingBrackets []int      `json:"mismatching_brackets,omitempty"`
	IncorrectPairs      []rna.Pair `json:"incorrect_pairs,omitempty"`
	Pairs               []rna.Pair `json:"pairs,omitempty"`
}

type memoError struct {
	Kind  rna.ValidationErrorKind `json:"kind"`
	Chars string                  `json:"chars,omitempty"`
	Limit int                     `json:"limit,omitempty"`
}

const (
	memoParseFailed      = "parse_failed"
	memoValidationFailed = "validation_failed"
	memoValidated        = "validated"
)

func encodeOutcome(o rna.Outcome) ([]byte, error) {
	var e memoEntry
	switch out := o.(type) {
	case rna.ParseFailed:
		e.Kind = memoParseFailed
		e.ParseKind = out.Err.Kind
		e.ParseBlock = out.Err.Block
	case rna.ValidationFailed:
		e.Kind = memoValidationFailed
		for _, ve := range out.Errors {
			e.Errors = append(e.Errors, memoError{Kind: ve.Kind, Chars: ve.Chars, Limit: ve.Limit})
		}
	case rna.Validated:
		e = memoEntry{
			Kind:                memoValidated,
			Name:                out.Name,
			Separator:           out.Separator,
			Sequence:            out.Sequence,
			Structure:           out.Structure,
			Repaired:            out.Repaired,
			FixSuggested:        out.FixSuggested,
			MismatchingBrackets: out.MismatchingBrackets,
			IncorrectPairs:      out.IncorrectPairs,
			Pairs:               out.Pairs.Sorted(),
		}
	default:
		return nil, fmt.Errorf("encode outcome: unexpected %T", o)
	}
	return json.Marshal(e)
}

func decodeOutcome(b []byte) (rna.Outcome, error) {
	var e memoEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	switch e.Kind {
	case memoParseFailed:
		return rna.ParseFailed{Err: &rna.ParseError{Kind: e.ParseKind, Block: e.ParseBlock}}, nil
	case memoValidationFailed:
		errs := make([]*rna.ValidationError, len(e.Errors))
		for i, me := range e.Errors {
			errs[i] = &rna.ValidationError{Kind: me.Kind, Chars: me.Chars, Limit: me.Limit}
		}
		return rna.ValidationFailed{Errors: errs}, nil
	case memoValidated:
		pairs := make(rna.PairSet, len(e.Pairs))
		for _, p := range e.Pairs {
			pairs.Add(p)
		}
		return rna.Validated{
			Name:                e.Name,
			Separator:           e.Separator,
			Sequence:            e.Sequence,
			Structure:           e.Structure,
			Repaired:            e.Repaired,
			FixSuggested:        e.FixSuggested,
			MismatchingBrackets: e.MismatchingBrackets,
			IncorrectPairs:      e.IncorrectPairs,
			Pairs:               pairs,
		}, nil
	default:
		return nil, fmt.Errorf("decode outcome: unknown kind %q", e.Kind)
	}
}
