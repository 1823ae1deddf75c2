package partial

import (
	"github.com/agentic-research/tangle/internal/cancel"
)

// RemoveShadowedPaths removes every partial path that some other path in
// the set shadows, according to the precedence values of their edges.
// Quadratic; the flag is checked each outer iteration.
func (pp *PartialPaths) RemoveShadowedPaths(allPaths *[]PartialPath, flag cancel.Flag) error {
	in := *allPaths
	keep := make([]bool, len(in))
	for i := range keep {
		keep[i] = true
	}
	for i := range in {
		if err := flag.Check("remove shadowed partial paths"); err != nil {
			return err
		}
		for j := range in {
			if i == j || !keep[j] {
				continue
			}
			if in[i].Shadows(pp, &in[j]) {
				keep[j] = false
			}
		}
	}
	out := in[:0]
	for i := range in {
		if keep[i] {
			out = append(out, in[i])
		}
	}
	*allPaths = out
	return nil
}
