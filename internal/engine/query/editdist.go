package query

// editDistanceWithin computes the Levenshtein distance between a and b,
// abandoning early once the distance is guaranteed to exceed max. The
// boolean reports whether the distance is within max.
func editDistanceWithin(a, b string, max int) (int, bool) {
	ra, rb := []rune(a), []rune(b)
	if diff := len(ra) - len(rb); diff > max || diff < -max {
		return 0, false
	}
	if len(ra) == 0 {
		return len(rb), len(rb) <= max
	}
	if len(rb) == 0 {
		return len(ra), len(ra) <= max
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > max {
			return 0, false
		}
		prev, curr = curr, prev
	}
	if prev[len(rb)] > max {
		return 0, false
	}
	return prev[len(rb)], true
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
