package rna

import (
	"errors"
	"fmt"
)

// ParseErrorKind identifies why raw input could not be split into strands.
type ParseErrorKind string

const (
	InconsistentStrandNaming ParseErrorKind = "INCONSISTENT_STRAND_NAMING"
	WrongLineOrder           ParseErrorKind = "WRONG_LINE_ORDER"
	MissingLines             ParseErrorKind = "MISSING_LINES"
)

// ParseError is returned by ParseStructure. Block is the 1-based strand block
// the problem was found in.
type ParseError struct {
	Kind  ParseErrorKind
	Block int
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case InconsistentStrandNaming:
		return "Either all strands must be named or none of them"
	case WrongLineOrder:
		return fmt.Sprintf("Strand %d: the dot-bracket line must follow the sequence line", e.Block)
	case MissingLines:
		return fmt.Sprintf("Strand %d: missing sequence or dot-bracket line", e.Block)
	default:
		return string(e.Kind)
	}
}

// ValidationErrorKind identifies a fatal alphabet or length problem.
type ValidationErrorKind string

const (
	InvalidData       ValidationErrorKind = "INVALID_DATA"
	LengthExceeded    ValidationErrorKind = "LENGTH_EXCEEDED"
	UnequalLengths    ValidationErrorKind = "UNEQUAL_LENGTHS"
	InvalidCharacters ValidationErrorKind = "INVALID_CHARACTERS"
	InvalidBrackets   ValidationErrorKind = "INVALID_BRACKETS"
)

// ValidationError describes one reason a structure was rejected before
// bracket matching. Chars holds the sorted offending characters for
// InvalidCharacters and InvalidBrackets; Limit holds the maximum length for
// LengthExceeded.
type ValidationError struct {
	Kind  ValidationErrorKind
	Chars string
	Limit int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case InvalidData:
		return "Invalid data"
	case LengthExceeded:
		return fmt.Sprintf("RNA is longer than the maximum of %d nucleotides", e.Limit)
	case UnequalLengths:
		return "RNA and DotBracket not of equal lengths"
	case InvalidCharacters:
		return "RNA contains invalid characters: " + e.Chars
	case InvalidBrackets:
		return "DotBracket contains invalid brackets: " + e.Chars
	default:
		return string(e.Kind)
	}
}

// ErrRealignLength is returned when a produced structure cannot be laid over
// the reference because their residue counts differ.
var ErrRealignLength = errors.New("produced structure length does not match input")
