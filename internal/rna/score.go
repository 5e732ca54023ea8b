package rna

import (
	"math"
	"sort"
)

// Pair is a base pair between positions I < J of a dot-bracket string.
type Pair struct {
	I int `json:"i"`
	J int `json:"j"`
}

// PairSet is a set of base pairs.
type PairSet map[Pair]struct{}

func (s PairSet) Add(p Pair) { s[p] = struct{}{} }

func (s PairSet) Has(p Pair) bool {
	_, ok := s[p]
	return ok
}

func (s PairSet) Len() int { return len(s) }

// Sorted returns the pairs ordered by opening then closing position.
func (s PairSet) Sorted() []Pair {
	out := make([]Pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].I != out[b].I {
			return out[a].I < out[b].I
		}
		return out[a].J < out[b].J
	})
	return out
}

// Accuracy compares a model pair set with a target pair set.
type Accuracy struct {
	TP  int     `json:"tp"`
	FP  int     `json:"fp"`
	FN  int     `json:"fn"`
	INF float64 `json:"inf"`
	F1  float64 `json:"f1"`
}

// Score computes F1 and interaction network fidelity of model against
// target. Undefined ratios fall back to fixed values: PPV to 0, sensitivity
// to 1 and F1 to 0, so an empty target scored against an empty model is 0.
func Score(target, model PairSet) Accuracy {
	var a Accuracy
	for p := range model {
		if target.Has(p) {
			a.TP++
		} else {
			a.FP++
		}
	}
	a.FN = target.Len() - a.TP

	ppv := 0.0
	if a.TP+a.FP > 0 {
		ppv = float64(a.TP) / float64(a.TP+a.FP)
	}
	tpr := 1.0
	if a.TP+a.FN > 0 {
		tpr = float64(a.TP) / float64(a.TP+a.FN)
	}
	a.INF = math.Sqrt(ppv * tpr)

	if d := 2*a.TP + a.FP + a.FN; d > 0 {
		a.F1 = float64(2*a.TP) / float64(d)
	}
	return a
}
