package fdiff

import "sort"

// ResolveConflicts orders located patches by position and reports every
// patch whose span overlaps a neighbour. The returned map goes from the
// patch Index to the Index of the patch it overlaps; both members of an
// overlapping pair are present.
func ResolveConflicts(located []LocatedPatch) ([]LocatedPatch, map[int]LocatedPatch) {
	sorted := append([]LocatedPatch(nil), located...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	conflicts := make(map[int]LocatedPatch)
	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		if a.End > b.Start {
			conflicts[a.Index] = b
			conflicts[b.Index] = a
		}
	}
	return sorted, conflicts
}
