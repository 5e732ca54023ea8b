package submit

import "sort"

// Example is a built-in demo structure. Every example is computed once and
// the resulting job is shared by everyone who asks for it.
type Example struct {
	Number        int    `json:"example_number"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Raw           string `json:"fasta_raw"`
	Seed          int    `json:"seed"`
	Conformations int    `json:"alternative_conformations"`
}

var examples = map[int]Example{
	1: {
		Number:        1,
		Name:          "example_job_1",
		Description:   "Yeast tRNA-Phe with a pseudoknot",
		Raw:           ">example1\ngCGGAUUUAgCUCAGuuGGGAGAGCgCCAGAcUgAAgAucUGGAGgUCcUGUGuuCGaUCCACAGAAUUCGCACCA\n(((((((..((((.....[..)))).((((.........)))).....(((((..]....))))))))))))....",
		Seed:          42,
		Conformations: 1,
	},
	2: {
		Number:        2,
		Name:          "example_job_2",
		Description:   "Two-strand helix",
		Raw:           ">tsh_helix\nCGCGGAACG CGGGACGCG\n((((...(( ))...))))",
		Seed:          42,
		Conformations: 2,
	},
	3: {
		Number:      3,
		Name:        "example_job_3",
		Description: "Two named strands with pseudoknots",
		Raw: ">strand_A\naGCGCCuGGACUUAAAGCCAUUGCACU\n..((((.((((((((((((........\n" +
			">strand_B\nCCGGCUUUAAGUUGACGAGGGCAGGGUUuAUCGAGACAUCGGCGGGUGCCCUGCGGUCUUCCUGCGACCGUUAGAGGACUGGuAAAACCACAGGCGACUGUGGCAUAGAGCAGUCCGGGCAGGAA\n" +
			"..)))))))))))..(((...[[[[[[...)))......)))))...]]]]]][[[[[.((((((]]]]].....((((((......((((((....)))))).......))))))..)))))).",
		Seed:          7,
		Conformations: 1,
	},
}

// LookupExample returns the built-in example with number n.
func LookupExample(n int) (Example, bool) {
	e, ok := examples[n]
	return e, ok
}

// Examples lists the built-in examples by number.
func Examples() []Example {
	list := make([]Example, 0, len(examples))
	for _, e := range examples {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	return list
}
