package recommend

import "strings"

// normalizeTags lowercases, trims and deduplicates tags, dropping empties.
func normalizeTags(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// TagAffinity is the Jaccard similarity of two tag lists, compared
// case-insensitively. It is 0 when either list is empty.
func TagAffinity(a, b []string) float64 {
	sa, sb := normalizeTags(a), normalizeTags(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}
