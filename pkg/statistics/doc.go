/*
Package statistics turns sensor history into Home Assistant style long-term
statistics rows and back into state records.

Home Assistant keeps full state history for a limited time (10 days by
default) but stores numeric sensors as 5-minute statistics much longer. Each
row covers one period and carries up to five values:

	mean   average over the period (measurement sensors)
	min    lowest value in the period
	max    highest value in the period
	state  last known state at the end of the period
	sum    running total (total_increasing sensors)

Rows become history.StateRecords stamped at the period start, with the state
taken from mean, then state, then sum, whichever is present first. That lets
the cycle detectors run over statistics exactly as they run over raw history.

# Downsampling

Aggregate and Downsample build the same rows locally from raw history:

	raw records  ──Aggregate(period)──▶  []Aggregate (sum, count, min, max, last)
	             ──Row()──────────────▶  Row{Mean, Min, Max, State}
	             ──Record()───────────▶  StateRecord at the bucket start

Climate entities keep their attributes: their buckets hold the last record of
the period instead of numeric aggregates.

A bucket is stamped at its start but summarizes the whole period, so an as-of
lookup inside a bucket sees readings taken later in that period. Home
Assistant's own statistics rows behave the same way.

Source wraps any history.Source and downsamples what it returns, which is how
statistics are produced when the WebSocket API is not reachable.
*/
package statistics
