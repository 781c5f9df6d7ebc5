// Package history models Home Assistant state history and the primitives the
// cycle extractor builds on.
//
// # Records and sets
//
// A StateRecord is one state change of one entity: the raw state string, its
// attributes and the time it changed. An EntityHistory is the chronologically
// ordered list of records for one entity, and a Set maps entity ids to their
// histories for a single requested window. A Set is owned by one extraction
// call and is never shared between calls.
//
// # Fetching
//
// Sources (the REST history endpoint, the statistics endpoint, test fakes)
// implement Source. Fetcher wraps a Source and splits long windows into
// sequential chunks of at most seven days, because the history endpoint caps
// the number of records it returns per request:
//
//	f := history.NewFetcher(src, history.FetcherConfig{})
//	set, err := f.Fetch(ctx, []string{"sensor.living_temp", "switch.boiler"}, start, end)
//	if errors.Is(err, history.ErrConnection) {
//	    // transport or auth failure, nothing was returned
//	}
//
// Chunks are fetched one at a time; the first failing chunk aborts the whole
// fetch and no partial Set is returned.
//
// # Lookups
//
// ValueAt implements zero-order hold: the value in effect at time t is the one
// from the latest record at or before t. Sentinel states ("unknown",
// "unavailable", "") and non-numeric values are skipped in place.
//
// ClassifyEntity decides once per entity whether values live in the raw state
// (KindScalar) or in named attributes of a climate entity (KindStructured).
// IsHeating turns one record into a heating/not-heating bit for either kind.
package history
