// Package rna parses, validates and scores RNA secondary structures written
// in dot-bracket notation.
package rna

import (
	"strings"

	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
)

const (
	nucleotideLetters = "ACGUTacgut"
	bracketGlyphs     = ".()[]<>{}AaBbCcDd"
)

// Structure is a normalized multi-strand input: uppercase RNA with T
// replaced by U, strands joined by a single space in both Sequence and
// DotBracket. Separator records how the strands were joined in the raw
// input and is one of the models.Separator* values.
type Structure struct {
	Name       string
	Sequence   string
	DotBracket string
	Separator  string
}

// ParseStructure normalizes FASTA-like text made of (name, sequence,
// dot-bracket) or (sequence, dot-bracket) blocks, one block per strand.
// Blank lines and lines starting with '#' are ignored. A block may also hold
// several strands on one line, separated by spaces or hyphens.
//
// Empty input yields an empty Structure; rejecting it is the validator's job.
func ParseStructure(raw string) (*Structure, error) {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}

	st := &Structure{Separator: models.SeparatorNone}
	if len(lines) == 0 {
		return st, nil
	}

	named := isNameLine(lines[0])
	if !named {
		for _, l := range lines {
			if isNameLine(l) {
				return nil, &ParseError{Kind: InconsistentStrandNaming, Block: 1}
			}
		}
	}

	size := 2
	if named {
		size = 3
	}

	var (
		seqStrands, dbStrands []string
		hyphen, space         bool
		blocks                int
	)
	for start := 0; start < len(lines); start += size {
		blocks++
		block := lines[start:min(start+size, len(lines))]

		body := block
		if named {
			if !isNameLine(block[0]) {
				return nil, &ParseError{Kind: InconsistentStrandNaming, Block: blocks}
			}
			if blocks == 1 {
				st.Name = strings.TrimSpace(strings.TrimPrefix(block[0], ">"))
			}
			body = block[1:]
		}
		for _, l := range body {
			if isNameLine(l) {
				// A name line arrived before this strand was complete.
				return nil, &ParseError{Kind: MissingLines, Block: blocks}
			}
		}
		if len(block) < size {
			return nil, &ParseError{Kind: MissingLines, Block: blocks}
		}

		seqLine, dbLine := body[0], body[1]
		if !strings.ContainsAny(dbLine, bracketGlyphs) || nucleotideOnly(dbLine) {
			return nil, &ParseError{Kind: WrongLineOrder, Block: blocks}
		}

		hyphen = hyphen || strings.ContainsRune(seqLine, '-')
		space = space || strings.ContainsRune(seqLine, ' ')

		for _, s := range splitStrands(seqLine) {
			seqStrands = append(seqStrands, strings.ReplaceAll(strings.ToUpper(s), "T", "U"))
		}
		dbStrands = append(dbStrands, splitStrands(dbLine)...)
	}

	switch {
	case hyphen:
		st.Separator = models.SeparatorHyphen
	case space || blocks > 1:
		st.Separator = models.SeparatorSpace
	}
	st.Sequence = strings.Join(seqStrands, " ")
	st.DotBracket = strings.Join(dbStrands, " ")
	return st, nil
}

func isNameLine(l string) bool {
	return strings.HasPrefix(l, ">")
}

func splitStrands(l string) []string {
	return strings.FieldsFunc(l, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	})
}

// nucleotideOnly reports whether l is a sequence line: every non-separator
// character is a nucleotide letter and at least one of them (G, U or T) is
// not a bracket glyph. Lines such as "AAaa" are pseudoknot brackets.
func nucleotideOnly(l string) bool {
	foreign := false
	for _, r := range l {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		if !strings.ContainsRune(nucleotideLetters, r) {
			return false
		}
		if !strings.ContainsRune(bracketGlyphs, r) {
			foreign = true
		}
	}
	return foreign
}
