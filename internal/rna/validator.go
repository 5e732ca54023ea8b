package rna

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Config is the alphabet and length policy a Validator enforces.
// Brackets lists '.' plus opening/closing glyph pairs in order, e.g.
// ".()[]"; Pairs lists allowed base pairs as consecutive letter pairs, e.g.
// "GCCG" for G-C and C-G.
type Config struct {
	Nucleotides string
	Brackets    string
	Pairs       string
	MaxLength   int
}

// DefaultConfig returns the standard RNA alphabet: ACGU, the four bracket
// types plus Aa..Dd for pseudoknots, and the Watson-Crick and wobble pairs.
func DefaultConfig() Config {
	return Config{
		Nucleotides: "ACGU",
		Brackets:    bracketGlyphs,
		Pairs:       "GCCGAUUAGUUG",
		MaxLength:   500,
	}
}

// Validator checks normalized structures against a Config. It is safe for
// concurrent use.
type Validator struct {
	nucleotides map[rune]bool
	brackets    map[rune]bool
	pairs       map[[2]byte]bool
	openers     map[byte]int
	closers     map[byte]int
	kinds       int
	maxLength   int
}

// NewValidator builds a Validator, rejecting configs whose bracket or pair
// lists are not made of complete pairs.
func NewValidator(cfg Config) (*Validator, error) {
	if cfg.Nucleotides == "" {
		return nil, fmt.Errorf("rna: nucleotide alphabet is empty")
	}
	glyphs := strings.ReplaceAll(cfg.Brackets, ".", "")
	if len(glyphs)%2 != 0 {
		return nil, fmt.Errorf("rna: bracket glyphs %q do not form pairs", cfg.Brackets)
	}
	if len(cfg.Pairs)%2 != 0 {
		return nil, fmt.Errorf("rna: valid pairs %q do not form pairs", cfg.Pairs)
	}

	v := &Validator{
		nucleotides: map[rune]bool{' ': true},
		brackets:    map[rune]bool{' ': true, '.': true},
		pairs:       make(map[[2]byte]bool),
		openers:     make(map[byte]int),
		closers:     make(map[byte]int),
		kinds:       len(glyphs) / 2,
		maxLength:   cfg.MaxLength,
	}
	for _, r := range cfg.Nucleotides {
		v.nucleotides[r] = true
	}
	for i := 0; i < len(glyphs); i += 2 {
		v.openers[glyphs[i]] = i / 2
		v.closers[glyphs[i+1]] = i / 2
		v.brackets[rune(glyphs[i])] = true
		v.brackets[rune(glyphs[i+1])] = true
	}
	for i := 0; i < len(cfg.Pairs); i += 2 {
		v.pairs[[2]byte{cfg.Pairs[i], cfg.Pairs[i+1]}] = true
	}
	return v, nil
}

// Check parses raw input and validates the result.
func Check(raw string, v *Validator) Outcome {
	st, err := ParseStructure(raw)
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			pe = &ParseError{Kind: MissingLines}
		}
		return ParseFailed{Err: pe}
	}
	out := v.Validate(st.Sequence, st.DotBracket)
	if ok, isValid := out.(Validated); isValid {
		ok.Name = st.Name
		ok.Separator = st.Separator
		return ok
	}
	return out
}

// Validate checks a normalized sequence and dot-bracket pair. Length and
// alphabet problems are fatal and returned together as ValidationFailed.
// Otherwise the structure is always Validated: unmatched brackets and
// disallowed base pairs are reported and replaced with '.' in Repaired.
func (v *Validator) Validate(seq, db string) Outcome {
	if len(seq) == 0 {
		return ValidationFailed{Errors: []*ValidationError{{Kind: InvalidData}}}
	}

	var errs []*ValidationError
	if v.maxLength > 0 && residues(seq) > v.maxLength {
		errs = append(errs, &ValidationError{Kind: LengthExceeded, Limit: v.maxLength})
	}
	if !aligned(seq, db) {
		errs = append(errs, &ValidationError{Kind: UnequalLengths})
	}
	if chars := outside(seq, v.nucleotides); chars != "" {
		errs = append(errs, &ValidationError{Kind: InvalidCharacters, Chars: chars})
	}
	if chars := outside(db, v.brackets); chars != "" {
		errs = append(errs, &ValidationError{Kind: InvalidBrackets, Chars: chars})
	}
	if len(errs) > 0 {
		return ValidationFailed{Errors: errs}
	}

	stacks := make([][]int, v.kinds)
	repaired := []byte(db)
	pairs := make(PairSet)
	var (
		mismatching []int
		incorrect   []Pair
	)
	for i := 0; i < len(db); i++ {
		c := db[i]
		if k, ok := v.openers[c]; ok {
			stacks[k] = append(stacks[k], i)
			continue
		}
		k, ok := v.closers[c]
		if !ok {
			continue
		}
		open := stacks[k]
		if len(open) == 0 {
			mismatching = append(mismatching, i)
			repaired[i] = '.'
			continue
		}
		j := open[len(open)-1]
		stacks[k] = open[:len(open)-1]
		if v.pairs[[2]byte{seq[j], seq[i]}] {
			pairs.Add(Pair{I: j, J: i})
			continue
		}
		incorrect = append(incorrect, Pair{I: j, J: i})
		repaired[j] = '.'
		repaired[i] = '.'
	}
	for _, open := range stacks {
		for _, j := range open {
			mismatching = append(mismatching, j)
			repaired[j] = '.'
		}
	}
	sort.Ints(mismatching)

	fixed := string(repaired)
	return Validated{
		Sequence:            seq,
		Structure:           db,
		Repaired:            fixed,
		FixSuggested:        fixed != db,
		MismatchingBrackets: mismatching,
		IncorrectPairs:      incorrect,
		Pairs:               pairs,
	}
}

// Pairs returns the accepted base pairs of a structure, the set the scorer
// compares.
func (v *Validator) Pairs(seq, db string) (PairSet, error) {
	switch out := v.Validate(seq, db).(type) {
	case Validated:
		return out.Pairs, nil
	case ValidationFailed:
		return nil, out.Errors[0]
	default:
		return nil, fmt.Errorf("rna: unexpected outcome %T", out)
	}
}

func residues(s string) int {
	return len(s) - strings.Count(s, " ")
}

// aligned reports whether seq and db have the same length and place strand
// separators at the same offsets.
func aligned(seq, db string) bool {
	if len(seq) != len(db) {
		return false
	}
	for i := 0; i < len(seq); i++ {
		if (seq[i] == ' ') != (db[i] == ' ') {
			return false
		}
	}
	return true
}

// outside returns the sorted, de-duplicated characters of s missing from allowed.
func outside(s string, allowed map[rune]bool) string {
	seen := make(map[rune]bool)
	var bad []rune
	for _, r := range s {
		if !allowed[r] && !seen[r] {
			seen[r] = true
			bad = append(bad, r)
		}
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
	return string(bad)
}
