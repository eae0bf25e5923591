// Package rag implements the hybrid retriever: parallel keyword and vector
// search, min-max normalization, weighted fusion, and context merging into
// an outgoing chat request.
package rag

import (
	"hash/fnv"
	"sort"
)

// scoredHit pairs a retrieved passage with its fusion score and provenance.
type scoredHit struct {
	Content string
	Score   float64
	From    string // "keyword" | "vector"
}

const (
	fromKeyword = "keyword"
	fromVector  = "vector"
)

// hashContent produces the stable dedup/fusion key for a passage. FNV-64a is
// a fast, deterministic string hash used purely to key a map, not for
// security.
func hashContent(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// minMaxNormalize rescales every score in the map to [0, 1]. When every score
// is equal (max - min == 0), every normalized score is 0 rather than
// dividing by zero.
func minMaxNormalize(scores map[uint64]float64) map[uint64]float64 {
	out := make(map[uint64]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	min, max := minMaxOf(scores)
	spread := max - min

	for k, v := range scores {
		if spread > 0 {
			out[k] = (v - min) / spread
		} else {
			out[k] = 0
		}
	}
	return out
}

func minMaxOf(scores map[uint64]float64) (min, max float64) {
	first := true
	for _, v := range scores {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// weightedFusion combines normalized keyword and vector scores for the union
// of their keys. A doc retrieved by both sources gets alpha*k + (1-alpha)*v;
// a doc retrieved by only one source keeps that source's normalized score
// as-is. The gate is presence in the raw (pre-normalization) score map, not
// whether the normalized score happens to be positive — a doc that is the
// single lowest-scoring keyword hit normalizes to 0 but was still retrieved
// by keyword search, so it must still blend with its vector score rather
// than being treated as keyword-absent.
func weightedFusion(kwScores, vectorScores map[uint64]float64, alpha float64) map[uint64]float64 {
	switch {
	case len(kwScores) == 0 && len(vectorScores) == 0:
		return map[uint64]float64{}
	case len(vectorScores) == 0:
		return minMaxNormalize(kwScores)
	case len(kwScores) == 0:
		return minMaxNormalize(vectorScores)
	}

	kwNorm := minMaxNormalize(kwScores)
	vecNorm := minMaxNormalize(vectorScores)

	allIDs := make(map[uint64]struct{}, len(kwScores)+len(vectorScores))
	for id := range kwScores {
		allIDs[id] = struct{}{}
	}
	for id := range vectorScores {
		allIDs[id] = struct{}{}
	}

	fused := make(map[uint64]float64, len(allIDs))
	for id := range allIDs {
		_, inKw := kwScores[id]
		_, inVec := vectorScores[id]
		switch {
		case inKw && inVec:
			fused[id] = alpha*kwNorm[id] + (1-alpha)*vecNorm[id]
		case inKw:
			fused[id] = kwNorm[id]
		default:
			fused[id] = vecNorm[id]
		}
	}
	return fused
}

// rankedID is one fused score paired with its hash key, used only to sort
// deterministically before truncating to the caller's limit.
type rankedID struct {
	id    uint64
	score float64
}

// rankFused sorts fused scores from high to low and truncates to limit.
func rankFused(fused map[uint64]float64, limit int) []rankedID {
	ranked := make([]rankedID, 0, len(fused))
	for id, score := range fused {
		ranked = append(ranked, rankedID{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id // stable tie-break, hash has no meaningful order
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// fuseHits runs the full rerank pipeline: hash both hit sets by content,
// normalize, fuse, rank, then resolve each surviving id back to its passage
// content and provenance.
func fuseHits(kwHits []KeywordHit, vectorHits []VectorHit, alpha float64, limit int) []scoredHit {
	kwScores := make(map[uint64]float64, len(kwHits))
	kwContent := make(map[uint64]string, len(kwHits))
	for _, h := range kwHits {
		id := hashContent(h.Content)
		kwScores[id] = h.Score
		kwContent[id] = h.Content
	}

	vecScores := make(map[uint64]float64, len(vectorHits))
	vecContent := make(map[uint64]string, len(vectorHits))
	for _, h := range vectorHits {
		id := hashContent(h.Source)
		vecScores[id] = h.Score
		vecContent[id] = h.Source
	}

	fused := weightedFusion(kwScores, vecScores, alpha)
	if len(fused) == 0 {
		return nil
	}

	ranked := rankFused(fused, limit)
	out := make([]scoredHit, 0, len(ranked))
	for _, r := range ranked {
		if content, ok := kwContent[r.id]; ok {
			out = append(out, scoredHit{Content: content, Score: r.score, From: fromKeyword})
		} else if content, ok := vecContent[r.id]; ok {
			out = append(out, scoredHit{Content: content, Score: r.score, From: fromVector})
		}
	}
	return out
}
