package evaluation

// RecallAtK computes Recall@K: the fraction of relevant items found in the top-K retrieved results.
// Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := make(map[string]struct{}, len(relevant))
	for _, r := range relevant {
		relevantSet[r] = struct{}{}
	}

	found := 0
	for _, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			found++
			delete(relevantSet, r)
		}
	}

	return float64(found) / float64(len(relevant))
}

// MRRAtK computes the reciprocal rank of the first relevant item in the
// top-K retrieved results. Returns 0.0 if no relevant item is found in top-K.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	relevantSet := make(map[string]struct{}, len(relevant))
	for _, r := range relevant {
		relevantSet[r] = struct{}{}
	}

	for i, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}

func topK(items []string, k int) []string {
	if k < len(items) {
		return items[:k]
	}
	return items
}
