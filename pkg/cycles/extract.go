package cycles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

var (
	// ErrNoValidCycles is returned when a fetch succeeded but produced no
	// training examples.
	ErrNoValidCycles = errors.New("no valid heating cycles found")

	// ErrStatisticsUnavailable is returned for the statistics strategy when
	// the extractor has no statistics source.
	ErrStatisticsUnavailable = errors.New("statistics source not configured")
)

// ExtractorConfig holds the sources an Extractor reads from.
type ExtractorConfig struct {
	// History is the primary, bounded-window history source.
	History history.Source

	// Statistics is the 5-minute aggregate source (optional).
	Statistics history.Source

	// ChunkSize overrides history.DefaultChunkSize.
	ChunkSize time.Duration

	Logger *slog.Logger
}

// Extractor turns sensor history into training examples. It keeps no state
// between calls, so one Extractor can serve concurrent extractions.
type Extractor struct {
	history    *history.Fetcher
	statistics *history.Fetcher
	logger     *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{logger: logger}
	fetcherCfg := history.FetcherConfig{ChunkSize: cfg.ChunkSize, Logger: logger}
	if cfg.History != nil {
		e.history = history.NewFetcher(cfg.History, fetcherCfg)
	}
	if cfg.Statistics != nil {
		e.statistics = history.NewFetcher(cfg.Statistics, fetcherCfg)
	}
	return e
}

// Extract fetches the configured window and returns its training examples in
// chronological order.
//
// Errors matching history.ErrConnection mean the fetch failed and nothing was
// extracted. ErrNoValidCycles means the fetch succeeded but no cycle passed
// validation. Config problems match ErrInvalidConfig.
func (e *Extractor) Extract(ctx context.Context, cfg Config) ([]TrainingExample, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy := cfg.ResolvedStrategy()

	fetcher := e.history
	if strategy == StrategyStatistics {
		fetcher = e.statistics
		if fetcher == nil {
			return nil, ErrStatisticsUnavailable
		}
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: history source not configured", history.ErrConnection)
	}

	set, err := fetcher.Fetch(ctx, cfg.EntityIDs(), cfg.Start, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	examples, candidates := ExtractFromSet(set, cfg, e.logger)
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w between %s and %s (%d candidate cycles)",
			ErrNoValidCycles, cfg.Start.Format(time.RFC3339), cfg.End.Format(time.RFC3339), candidates)
	}

	e.logger.Info("extracted training examples",
		"strategy", string(strategy),
		"examples", len(examples),
		"cycles", candidates,
		"start", cfg.Start.Format(time.RFC3339),
		"end", cfg.End.Format(time.RFC3339))
	return examples, nil
}

// ExtractFromSet runs detection and splitting over an already fetched set.
// It returns the examples and the number of closed cycles considered.
// cfg is not validated.
func ExtractFromSet(set history.Set, cfg Config, logger *slog.Logger) ([]TrainingExample, int) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &run{set: set, sensors: newSensors(cfg), logger: logger}

	var closed []closedCycle
	switch cfg.ResolvedStrategy() {
	case StrategyCounter, StrategyStatistics:
		onTime := newEntityRef(cfg.OnTimeEntity, "")
		if len(set[onTime.id]) == 0 {
			logger.Warn("no on-time history found", "entity_id", onTime.id)
		}
		closed = r.detectCounter(onTime, cfg.buffer())
	default:
		heating := newEntityRef(cfg.HeatingEntity, "")
		if len(set[heating.id]) == 0 {
			logger.Warn("no heating state history found", "entity_id", heating.id)
		}
		closed = r.detectBoolean(heating)
	}

	return buildExamples(closed, cfg.SplitMinutes, cfg.location(), logger), len(closed)
}

// buildExamples applies the validity gate and splitting to closed cycles in
// order. minutes since last cycle is measured from the end of the previous
// closed cycle, whether or not that cycle produced examples.
func buildExamples(closed []closedCycle, splitMinutes int, loc *time.Location, logger *slog.Logger) []TrainingExample {
	var (
		out     []TrainingExample
		lastEnd time.Time
	)
	for _, c := range closed {
		since := 0.0
		if !lastEnd.IsZero() {
			since = math.Max(0, c.startTime.Sub(lastEnd).Minutes())
		}
		lastEnd = c.endTime

		duration := c.durationMinutes()
		if !c.startIndoor.ok || !c.startOutdoor.ok || !c.startTarget.ok || !c.endTemp.ok ||
			duration <= 0 || duration >= MaxCycleMinutes {
			logger.Debug("discarding heating cycle",
				"start", c.startTime.Format(time.RFC3339),
				"duration_minutes", duration,
				"indoor_known", c.startIndoor.ok,
				"outdoor_known", c.startOutdoor.ok,
				"target_known", c.startTarget.ok,
				"end_temp_known", c.endTemp.ok)
			continue
		}

		examples, err := SplitCycle(Cycle{
			Start:                 c.startTime,
			StartIndoorTemp:       c.startIndoor.value,
			EndTemp:               c.endTemp.value,
			DurationMinutes:       duration,
			OutdoorTemp:           c.startOutdoor.value,
			Humidity:              c.humidity,
			MinutesSinceLastCycle: since,
		}, splitMinutes, loc)
		if err != nil {
			logger.Debug("skipping invalid examples", "start", c.startTime.Format(time.RFC3339), "error", err)
		}
		out = append(out, examples...)
	}
	return out
}
