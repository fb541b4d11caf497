package internal

// SameEvent reports whether two normalized events represent the same
// appointment: equal titles (exact, case-sensitive) and equal start times at
// second granularity after UTC normalization. End time, location and meeting
// URL are copied on creation but are not part of the identity; title plus
// start time is the only fingerprint that survives a round trip through two
// different event schemas.
func SameEvent(a, b *Event) bool {
	return a.Title == b.Title && a.StartsAt.Unix() == b.StartsAt.Unix()
}

// MatchEvents pairs source events with destination events one-to-one in list
// order. When several source events share a (title, start) fingerprint, each
// claims at most one destination event, so duplicates on one side stay
// duplicates rather than collapsing into a single destination event.
//
// The returned slices hold indexes into src and dst that found no partner.
func MatchEvents(src, dst []*Event) (unmatchedSrc, unmatchedDst []int) {
	claimed := make([]bool, len(dst))

	for i, se := range src {
		found := false
		for j, de := range dst {
			if claimed[j] || !SameEvent(se, de) {
				continue
			}
			claimed[j] = true
			found = true
			break
		}
		if !found {
			unmatchedSrc = append(unmatchedSrc, i)
		}
	}
	for j := range dst {
		if !claimed[j] {
			unmatchedDst = append(unmatchedDst, j)
		}
	}
	return unmatchedSrc, unmatchedDst
}
