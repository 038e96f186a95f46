// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint served by
// `casegraph serve`.
package metrics

import "expvar"

// Pipeline counters.
var (
	DocumentsProcessed = expvar.NewInt("casegraph_documents_processed_total")
	DocumentFailures   = expvar.NewInt("casegraph_document_failures_total")
	Candidates         = expvar.NewInt("casegraph_candidates_total")
	EnrichFallbacks    = expvar.NewInt("casegraph_enrich_fallbacks_total")
	EnrichCacheHits    = expvar.NewInt("casegraph_enrich_cache_hits_total")
	Inconsistencies    = expvar.NewInt("casegraph_inconsistencies_total")
)

// Persistence counters.
var (
	EntitiesCreated    = expvar.NewInt("casegraph_entities_created_total")
	EntitiesReused     = expvar.NewInt("casegraph_entities_reused_total")
	EventsCreated      = expvar.NewInt("casegraph_events_created_total")
	ConnectionsCreated = expvar.NewInt("casegraph_connections_created_total")
	AlibisCreated      = expvar.NewInt("casegraph_alibis_created_total")
	DedupSkipped       = expvar.NewInt("casegraph_dedup_skipped_total")
	WriteRetries       = expvar.NewInt("casegraph_write_retries_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(int64(1)) }

// Add increments the given counter by n.
func Add(counter *expvar.Int, n int) { counter.Add(int64(n)) }
