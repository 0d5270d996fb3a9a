package matcher

import (
	"github.com/user/video-dedup-go/internal/fingerprint"
)

// alignDistance computes the edit distance between two sequence
// signatures. Substituting a row costs its bit disagreement (Hamming/64,
// so 0 for identical rows), inserting or deleting a row costs gapCost.
// This tolerates trimmed, padded or slightly re-timed duplicates that a
// single global hash would miss.
func alignDistance(a, b []uint64, gapCost float64) float64 {
	// Rolling single-row DP keeps memory linear in len(b).
	prev := make([]float64, len(b)+1)
	curr := make([]float64, len(b)+1)
	for j := 1; j <= len(b); j++ {
		prev[j] = float64(j) * gapCost
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = float64(i) * gapCost
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1] + float64(fingerprint.Hamming(a[i-1], b[j-1]))/float64(fingerprint.Columns)
			del := prev[j] + gapCost
			ins := curr[j-1] + gapCost
			curr[j] = sub
			if del < curr[j] {
				curr[j] = del
			}
			if ins < curr[j] {
				curr[j] = ins
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// AlignSimilarity normalizes the alignment distance by the longer row
// count into a score in [0,1], where 1.0 means identical signatures.
// Rows beyond maxRows are ignored to bound worst-case matching latency.
func AlignSimilarity(a, b []uint64, gapCost float64, maxRows int) float64 {
	if maxRows > 0 {
		if len(a) > maxRows {
			a = a[:maxRows]
		}
		if len(b) > maxRows {
			b = b[:maxRows]
		}
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	score := 1 - alignDistance(a, b, gapCost)/float64(longest)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
