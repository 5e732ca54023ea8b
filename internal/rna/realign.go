package rna

import (
	"strings"

	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
)

// Realign lays the separator-free produced string over reference, inserting
// a space wherever reference has one so that strand boundaries line up.
func Realign(reference, produced string) (string, error) {
	produced = strings.NewReplacer(" ", "", "-", "").Replace(produced)
	if residues(reference) != len(produced) {
		return "", ErrRealignLength
	}
	var b strings.Builder
	b.Grow(len(reference))
	k := 0
	for i := 0; i < len(reference); i++ {
		if reference[i] == ' ' {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(produced[k])
		k++
	}
	return b.String(), nil
}

// ApplySeparator replaces the internal single-space strand separator of s
// with sep.
func ApplySeparator(s, sep string) string {
	switch sep {
	case models.SeparatorHyphen:
		return strings.ReplaceAll(s, " ", "-")
	case models.SeparatorNone:
		return strings.ReplaceAll(s, " ", "")
	default:
		return s
	}
}
