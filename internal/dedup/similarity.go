package dedup

// SimilarityRatio returns a sequence-similarity ratio in [0,1] between two
// strings: 2*LCS/(len(a)+len(b)), the same shape as difflib-style ratios.
// Identical strings score 1.0; disjoint strings score 0.0.
//
// No library in our dependency set exposes an LCS-based ratio, so this is a
// direct dynamic-programming implementation over runes. Inputs are short
// query strings, so the O(len(a)*len(b)) cost is negligible.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	// Single-row LCS table.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}
