package services

import (
	"path/filepath"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EphemeralBudget returns how many of totalBudget results are reserved for
// attached documents: min(totalBudget, max(1, hint)).
func EphemeralBudget(totalBudget, hint int) int {
	if totalBudget <= 0 {
		return 0
	}
	return min(totalBudget, max(1, hint))
}

// Merge blends ephemeral and durable search results into one ranked list of
// at most totalBudget results.
//
// Without attached documents the durable results are returned alone,
// nearest first. With attached documents the ephemeral candidates of every
// document are pooled, ranked, and cut to the ephemeral budget; the rest of
// the budget goes to the nearest durable results. Ephemeral results always
// come first.
func Merge(
	ephemeral [][]domain.SearchResult,
	durable []domain.SearchResult,
	totalBudget, ephemeralHint int,
	ephemeralRequested bool,
) []domain.SearchResult {
	if totalBudget <= 0 {
		return []domain.SearchResult{}
	}

	var selected []domain.SearchResult
	if ephemeralRequested {
		var pooled []domain.SearchResult
		for _, results := range ephemeral {
			pooled = append(pooled, results...)
		}
		domain.SortByDistance(pooled)
		selected = domain.Truncate(pooled, EphemeralBudget(totalBudget, ephemeralHint))
	}

	remaining := max(totalBudget-len(selected), 0)
	ranked := append([]domain.SearchResult(nil), durable...)
	domain.SortByDistance(ranked)
	ranked = domain.Truncate(ranked, remaining)

	merged := make([]domain.SearchResult, 0, len(selected)+len(ranked))
	merged = append(merged, selected...)
	merged = append(merged, ranked...)
	return merged
}

// Citations numbers results by their position, starting at 1.
func Citations(results []domain.SearchResult) []domain.Citation {
	citations := make([]domain.Citation, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = filepath.Base(r.Source)
		}
		citations[i] = domain.Citation{
			Marker:      i + 1,
			SourceTitle: title,
			Source:      r.Source,
			Page:        r.Page,
		}
	}
	return citations
}
