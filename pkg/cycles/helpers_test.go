package cycles

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

var t0 = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

const (
	indoorID  = "sensor.living_temperature"
	outdoorID = "sensor.outdoor_temperature"
	targetID  = "input_number.living_target"
	heaterID  = "switch.living_heater"
	onTimeID  = "sensor.living_heater_on_time"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// at returns t0 shifted by m minutes.
func at(m float64) time.Time {
	return t0.Add(time.Duration(m * float64(time.Minute)))
}

type point struct {
	minute float64
	state  string
}

func series(id string, points ...point) history.EntityHistory {
	h := make(history.EntityHistory, 0, len(points))
	for _, p := range points {
		h = append(h, history.StateRecord{EntityID: id, State: p.state, Timestamp: at(p.minute)})
	}
	return h
}

// roomSet is a room that is 19 °C below a 21 °C target with 5 °C outside,
// plus the given heater history.
func roomSet(heaterHistory history.EntityHistory, extra ...history.EntityHistory) history.Set {
	set := history.Set{
		indoorID:  series(indoorID, point{-10, "19.0"}),
		outdoorID: series(outdoorID, point{-60, "5.0"}),
		targetID:  series(targetID, point{-60, "21.0"}),
	}
	if len(heaterHistory) > 0 {
		set[heaterHistory[0].EntityID] = heaterHistory
	}
	for _, h := range extra {
		set[h[0].EntityID] = append(set[h[0].EntityID], h...)
		set[h[0].EntityID].Sort()
	}
	return set
}

func booleanConfig() Config {
	return Config{
		IndoorEntity:  indoorID,
		OutdoorEntity: outdoorID,
		TargetEntity:  targetID,
		HeatingEntity: heaterID,
		Start:         at(-24 * 60),
		End:           at(24 * 60),
	}
}

func counterConfig() Config {
	cfg := booleanConfig()
	cfg.HeatingEntity = ""
	cfg.OnTimeEntity = onTimeID
	return cfg
}

func staticSource(set history.Set) history.Source {
	return history.SourceFunc(func(ctx context.Context, ids []string, start, end time.Time) (history.Set, error) {
		out := make(history.Set)
		for _, id := range ids {
			if h, ok := set[id]; ok {
				out[id] = h
			}
		}
		return out, nil
	})
}
