package search

import "sort"

// fusionWeights balances the semantic and filename contributions of a
// combined query.
type fusionWeights struct {
	Semantic float64
	Filename float64
}

// normalizeScores min-max scales a result list into [0,1] in place.
// A constant list maps to all ones so a single strong hit keeps its
// full weight.
func normalizeScores(results []Result) {
	if len(results) == 0 {
		return
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	if max == min {
		for i := range results {
			results[i].Score = 1
		}
		return
	}
	span := max - min
	for i := range results {
		results[i].Score = (results[i].Score - min) / span
	}
}

// fuse merges normalized sub-lists into one ranking. A path hit by both
// indexes sums its weighted contributions and keeps the metadata of its
// higher-priority modality.
func fuse(semantic, filename []Result, weights fusionWeights) []Result {
	fused := make(map[string]Result, len(semantic)+len(filename))

	for _, r := range semantic {
		r.Score *= weights.Semantic
		fused[r.Path] = r
	}
	for _, r := range filename {
		r.Score *= weights.Filename
		prev, ok := fused[r.Path]
		if !ok {
			fused[r.Path] = r
			continue
		}
		prev.Score += r.Score
		if prev.Distance == 0 {
			prev.Distance = r.Distance
		}
		fused[r.Path] = prev
	}

	out := make([]Result, 0, len(fused))
	for _, r := range fused {
		out = append(out, r)
	}
	sortResults(out)
	return out
}

// sortResults orders by score descending, then modality priority, then
// path ascending so equal scores rank deterministically.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := modalityPriority(results[i].Modality), modalityPriority(results[j].Modality)
		if pi != pj {
			return pi < pj
		}
		return results[i].Path < results[j].Path
	})
}
