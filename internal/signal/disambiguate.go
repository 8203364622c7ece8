package signal

import (
	"math"
	"sort"
)

// Assignment binds one numeric token from an alert to the symbol it most
// plausibly refers to.
type Assignment struct {
	Symbol string
	Number int
}

type Assignments []Assignment

// Lookup returns the number assigned to symbol, if any.
func (a Assignments) Lookup(symbol string) (int, bool) {
	for _, as := range a {
		if as.Symbol == symbol {
			return as.Number, true
		}
	}
	return 0, false
}

// Disambiguate assigns each number to the symbol whose reference price it is
// closest to. Ties go to the symbol earliest in the priority list; symbols
// absent from the list rank after it in alphabetical order. When two numbers
// claim the same symbol the later one wins. The result is ordered by how close
// each assigned number sits to the mean of all reference prices, nearest
// first.
func Disambiguate(numbers []int, refs map[string]float64, priority []string) Assignments {
	if len(numbers) == 0 || len(refs) == 0 {
		return nil
	}

	symbols := rankSymbols(refs, priority)

	assigned := map[string]int{}
	for _, n := range numbers {
		best := ""
		bestDist := math.Inf(1)
		for _, sym := range symbols {
			d := math.Abs(float64(n) - refs[sym])
			if d < bestDist {
				best = sym
				bestDist = d
			}
		}
		assigned[best] = n
	}

	var mean float64
	for _, ref := range refs {
		mean += ref
	}
	mean /= float64(len(refs))

	out := make(Assignments, 0, len(assigned))
	for sym, n := range assigned {
		out = append(out, Assignment{Symbol: sym, Number: n})
	}
	sort.Slice(out, func(i, j int) bool {
		di := math.Abs(float64(out[i].Number) - mean)
		dj := math.Abs(float64(out[j].Number) - mean)
		if di != dj {
			return di < dj
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// rankSymbols orders candidate symbols: priority entries with a reference
// price first, the remainder alphabetically.
func rankSymbols(refs map[string]float64, priority []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, sym := range priority {
		if _, ok := refs[sym]; ok && !seen[sym] {
			out = append(out, sym)
			seen[sym] = true
		}
	}
	var rest []string
	for sym := range refs {
		if !seen[sym] {
			rest = append(rest, sym)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
