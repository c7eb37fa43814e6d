// Package queue is the durable job runtime: typed queues with retry policy,
// delayed jobs, parent/child flows and per-queue worker pools, persisted in
// the Badger job store.
package queue

import (
	"fmt"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Queue names.
const (
	SerieInserter   = "serie-inserter"
	ChapterData     = "chapter-data"
	PageRetry       = "page-retry"
	CoverUpdate     = "cover-update"
	Indexer         = "indexer"
	DeleteSerie     = "delete-serie"
	UpdateScheduler = "update-scheduler"
	SourcesSync     = "sources-sync"
)

// Limiter caps how many jobs a queue starts per window.
type Limiter struct {
	Max      int
	Duration time.Duration
}

// Definition is the static policy of one queue.
type Definition struct {
	Name        string
	DisplayName string
	Attempts    int
	Backoff     domain.Backoff
	Concurrency int
	Limiter     *Limiter
	// NewPayload returns a pointer to the queue's payload type, used to
	// validate and decode job bodies.
	NewPayload func() any
}

var exponential1s = domain.Backoff{Kind: domain.BackoffExponential, Delay: time.Second}

// Definitions lists every queue in display order.
var Definitions = []Definition{
	{
		Name: SerieInserter, DisplayName: "Serie Inserter",
		Attempts: 3, Backoff: exponential1s, Concurrency: 2,
		Limiter:    &Limiter{Max: 2, Duration: 5 * time.Second},
		NewPayload: func() any { return new(SerieInserterPayload) },
	},
	{
		Name: ChapterData, DisplayName: "Chapter Data",
		Attempts: 3, Backoff: exponential1s, Concurrency: 2,
		Limiter:    &Limiter{Max: 2, Duration: 5 * time.Second},
		NewPayload: func() any { return new(ChapterDataPayload) },
	},
	{
		Name: PageRetry, DisplayName: "Page Retry",
		Attempts: 3, Backoff: domain.Backoff{Kind: domain.BackoffExponential, Delay: 2 * time.Second},
		Concurrency: 2,
		Limiter:     &Limiter{Max: 2, Duration: 5 * time.Second},
		NewPayload:  func() any { return new(PageRetryPayload) },
	},
	{
		Name: CoverUpdate, DisplayName: "Cover Update",
		Attempts: 3, Backoff: exponential1s, Concurrency: 2,
		NewPayload: func() any { return new(CoverUpdatePayload) },
	},
	{
		Name: Indexer, DisplayName: "Indexer",
		Attempts: 3, Backoff: exponential1s, Concurrency: 8,
		NewPayload: func() any { return new(IndexerPayload) },
	},
	{
		Name: DeleteSerie, DisplayName: "Delete Serie",
		Attempts: 3, Backoff: exponential1s, Concurrency: 1,
		NewPayload: func() any { return new(DeleteSeriePayload) },
	},
	{
		Name: UpdateScheduler, DisplayName: "Update Scheduler",
		Attempts: 1, Concurrency: 1,
		NewPayload: func() any { return new(UpdateSchedulerPayload) },
	},
	{
		Name: SourcesSync, DisplayName: "Sources Sync",
		Attempts: 1, Concurrency: 1,
		NewPayload: func() any { return new(SourcesSyncPayload) },
	},
}

// Lookup returns the definition of the named queue.
func Lookup(name string) (Definition, error) {
	for _, d := range Definitions {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("unknown queue %q", name)
}

// Names returns every queue name in display order.
func Names() []string {
	out := make([]string, len(Definitions))
	for i, d := range Definitions {
		out[i] = d.Name
	}
	return out
}
