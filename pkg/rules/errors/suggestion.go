package errors

import (
	"fmt"
	"strings"
)

// SuggestName suggests the closest valid name for an unknown one.
// It uses Levenshtein distance and only suggests matches under 3 edits.
func SuggestName(unknown string, valid []string) string {
	if len(valid) == 0 {
		return ""
	}

	minDistance := 1000
	var bestMatch string
	for _, name := range valid {
		dist := levenshteinDistance(strings.ToLower(unknown), strings.ToLower(name))
		if dist < minDistance {
			minDistance = dist
			bestMatch = name
		}
	}

	if minDistance < 3 {
		return fmt.Sprintf("did you mean '%s'?", bestMatch)
	}

	if len(valid) > 5 {
		return fmt.Sprintf("valid names include: %s, ...", strings.Join(valid[:5], ", "))
	}
	return fmt.Sprintf("valid names: %s", strings.Join(valid, ", "))
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
