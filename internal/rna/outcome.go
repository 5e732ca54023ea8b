package rna

// Outcome is the result of validating a structure: exactly one of
// ParseFailed, ValidationFailed or Validated.
type Outcome interface {
	outcome()
}

// ParseFailed means the raw input could not be split into strands.
type ParseFailed struct {
	Err *ParseError
}

// ValidationFailed means the sequence or structure broke an alphabet or
// length rule. No repair is attempted.
type ValidationFailed struct {
	Errors []*ValidationError
}

// Validated is a structure that passed the alphabet checks. When
// FixSuggested is set, Repaired differs from Structure by the positions
// listed in MismatchingBrackets and IncorrectPairs. Pairs holds every bracket
// pair that was accepted as-is.
type Validated struct {
	Name                string
	Separator           string
	Sequence            string
	Structure           string
	Repaired            string
	FixSuggested        bool
	MismatchingBrackets []int
	IncorrectPairs      []Pair
	Pairs               PairSet
}

func (ParseFailed) outcome()      {}
func (ValidationFailed) outcome() {}
func (Validated) outcome()        {}

// Messages returns the user-facing error texts of the outcome.
func Messages(o Outcome) []string {
	switch out := o.(type) {
	case ParseFailed:
		return []string{out.Err.Error()}
	case ValidationFailed:
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Error()
		}
		return msgs
	default:
		return []string{}
	}
}
