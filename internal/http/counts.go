package http

import (
	"context"

	"github.com/fyrsmithlabs/vectord/internal/engine"
)

// CountFromEngine counts collections and live entities.
//
// Returns -1 for both if:
//   - e is nil
//   - listing collections fails
//
// Collections dropped between the listing and their count are skipped.
func CountFromEngine(ctx context.Context, e engine.Engine) StatusCounts {
	counts := StatusCounts{Collections: -1, Entities: -1}
	if e == nil {
		return counts
	}

	names, err := e.ListCollections(ctx)
	if err != nil {
		return counts
	}

	counts.Collections = len(names)
	counts.Entities = 0
	for _, name := range names {
		n, err := e.CountEntities(ctx, name)
		if err != nil {
			continue
		}
		counts.Entities += n
	}
	return counts
}
