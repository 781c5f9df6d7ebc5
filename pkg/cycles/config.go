package cycles

import (
	"errors"
	"fmt"
	"time"
)

// Strategy selects how heating activity is detected.
type Strategy string

const (
	// StrategyAuto uses the counter strategy when an on-time entity is
	// configured and the boolean strategy otherwise.
	StrategyAuto Strategy = ""
	// StrategyBoolean reads an on/off heating signal; cycles end as soon as
	// the signal drops.
	StrategyBoolean Strategy = "boolean"
	// StrategyCounter reads a cumulative on-time sensor; heating pauses
	// shorter than the buffer do not end a cycle.
	StrategyCounter Strategy = "counter"
	// StrategyStatistics runs the counter strategy over 5-minute statistics.
	StrategyStatistics Strategy = "statistics"
)

// Extraction defaults and limits.
const (
	DefaultOnTimeBufferMinutes = 15
	DefaultHumidity            = 50.0

	MinSplitMinutes = 10
	MaxSplitMinutes = 300
)

var (
	// ErrInvalidConfig is returned for extraction configs that cannot run.
	ErrInvalidConfig = errors.New("invalid extraction config")

	// ErrOnTimeRequired is returned when a counter-based strategy has no
	// on-time entity.
	ErrOnTimeRequired = fmt.Errorf("%w: on-time entity is required for the counter and statistics strategies", ErrInvalidConfig)
)

// Config describes one extraction run.
type Config struct {
	IndoorEntity   string
	OutdoorEntity  string
	TargetEntity   string
	HeatingEntity  string
	HumidityEntity string // optional, DefaultHumidity is used without it
	OnTimeEntity   string // optional

	Start time.Time
	End   time.Time

	// SplitMinutes splits cycles longer than this into sub-cycles
	// (0 = never split).
	SplitMinutes int

	// OnTimeBufferMinutes is how long the on-time sensor must stay idle
	// before a cycle ends (0 = DefaultOnTimeBufferMinutes).
	OnTimeBufferMinutes int

	Strategy Strategy

	// Location is used for HourOfDay (nil = UTC).
	Location *time.Location
}

// Validate checks that the config can run.
func (c Config) Validate() error {
	if c.IndoorEntity == "" {
		return fmt.Errorf("%w: indoor entity is required", ErrInvalidConfig)
	}
	if c.OutdoorEntity == "" {
		return fmt.Errorf("%w: outdoor entity is required", ErrInvalidConfig)
	}
	if c.TargetEntity == "" {
		return fmt.Errorf("%w: target entity is required", ErrInvalidConfig)
	}
	if !c.Start.Before(c.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidConfig)
	}
	if c.SplitMinutes != 0 && (c.SplitMinutes < MinSplitMinutes || c.SplitMinutes > MaxSplitMinutes) {
		return fmt.Errorf("%w: split minutes must be between %d and %d, got %d",
			ErrInvalidConfig, MinSplitMinutes, MaxSplitMinutes, c.SplitMinutes)
	}
	if c.OnTimeBufferMinutes < 0 {
		return fmt.Errorf("%w: on-time buffer must not be negative, got %d", ErrInvalidConfig, c.OnTimeBufferMinutes)
	}

	switch c.ResolvedStrategy() {
	case StrategyBoolean:
		if c.HeatingEntity == "" {
			return fmt.Errorf("%w: heating entity is required for the boolean strategy", ErrInvalidConfig)
		}
	case StrategyCounter, StrategyStatistics:
		if c.OnTimeEntity == "" {
			return ErrOnTimeRequired
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	return nil
}

// ResolvedStrategy returns the strategy after applying the auto rule.
func (c Config) ResolvedStrategy() Strategy {
	if c.Strategy != StrategyAuto {
		return c.Strategy
	}
	if c.OnTimeEntity != "" {
		return StrategyCounter
	}
	return StrategyBoolean
}

// EntityIDs lists the distinct entities the resolved strategy reads.
func (c Config) EntityIDs() []string {
	ids := []string{c.IndoorEntity, c.OutdoorEntity, c.TargetEntity}
	switch c.ResolvedStrategy() {
	case StrategyBoolean:
		ids = append(ids, c.HeatingEntity)
	default:
		ids = append(ids, c.OnTimeEntity)
	}
	if c.HumidityEntity != "" {
		ids = append(ids, c.HumidityEntity)
	}

	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (c Config) buffer() time.Duration {
	minutes := c.OnTimeBufferMinutes
	if minutes == 0 {
		minutes = DefaultOnTimeBufferMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
