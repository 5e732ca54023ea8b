package rna

import (
	"fmt"
	"strings"
)

// FormatDotseq renders a structure file: a name line followed by the
// sequence and dot-bracket lines.
func FormatDotseq(name, sequence, structure string) string {
	return fmt.Sprintf(">%s\n%s\n%s\n", name, sequence, structure)
}

// ParseDotseq reads a file written by FormatDotseq.
func ParseDotseq(content string) (name, sequence, structure string, err error) {
	lines := strings.Split(strings.TrimRight(strings.ReplaceAll(content, "\r\n", "\n"), "\n"), "\n")
	if len(lines) != 3 || !isNameLine(lines[0]) {
		return "", "", "", fmt.Errorf("rna: malformed dotseq: want 3 lines starting with '>', got %d", len(lines))
	}
	return strings.TrimPrefix(lines[0], ">"), lines[1], lines[2], nil
}
