package assessment

import (
	"cmp"
	"slices"

	"github.com/p-n-ai/pim/internal/catalog"
)

// ordered returns the questions sorted by index without touching the
// assessment. Loaded catalogs are already sorted; hand-built ones may not be.
func ordered(a catalog.Assessment) []catalog.Question {
	qs := slices.Clone(a.Questions)
	slices.SortStableFunc(qs, func(x, y catalog.Question) int {
		return cmp.Compare(x.Index, y.Index)
	})
	return qs
}
