package cycles

import (
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

// tempDeltaThreshold is the gap (°C) between target and indoor temperature
// below which the room counts as heated.
const tempDeltaThreshold = 0.2

// reading is a resolved sensor value; ok is false when nothing was known.
type reading struct {
	value float64
	ok    bool
}

// entityRef is an entity with its kind resolved once per run.
type entityRef struct {
	id   string
	kind history.Kind
	attr string
}

// newEntityRef classifies id. structuredAttr is the attribute holding the
// value when id turns out to be a climate entity.
func newEntityRef(id, structuredAttr string) entityRef {
	ref := entityRef{id: id, kind: history.ClassifyEntity(id)}
	if ref.kind == history.KindStructured {
		ref.attr = structuredAttr
	}
	return ref
}

func (e entityRef) valueAt(set history.Set, t time.Time) reading {
	v, ok := history.ValueAt(set[e.id], t, e.attr)
	return reading{value: v, ok: ok}
}

// sensors are the temperature and humidity entities of one run.
type sensors struct {
	indoor      entityRef
	outdoor     entityRef
	target      entityRef
	humidity    entityRef
	hasHumidity bool
}

func newSensors(cfg Config) sensors {
	s := sensors{
		indoor:  newEntityRef(cfg.IndoorEntity, history.AttrCurrentTemperature),
		outdoor: newEntityRef(cfg.OutdoorEntity, history.AttrExternalTemperature),
		target:  newEntityRef(cfg.TargetEntity, history.AttrTargetTemperature),
	}
	if cfg.HumidityEntity != "" {
		s.humidity = newEntityRef(cfg.HumidityEntity, history.AttrHumidity)
		s.hasHumidity = true
	}
	return s
}

// humidityAt is the single place where missing humidity becomes
// DefaultHumidity, both for runs without a humidity entity and for instants
// where the entity had no value yet.
func (s sensors) humidityAt(set history.Set, t time.Time) float64 {
	if !s.hasHumidity {
		return DefaultHumidity
	}
	if r := s.humidity.valueAt(set, t); r.ok {
		return r.value
	}
	return DefaultHumidity
}

// shouldStart reports whether a heating record at these temperatures opens
// a cycle.
func shouldStart(heating bool, indoor, target reading) bool {
	return heating && indoor.ok && target.ok && target.value-indoor.value > tempDeltaThreshold
}

// temperatureEnd returns the end reason implied by the temperatures alone,
// or "" when the cycle continues.
func temperatureEnd(indoor, target reading) endReason {
	if !indoor.ok || !target.ok {
		return ""
	}
	if indoor.value > target.value {
		return reasonTargetExceeded
	}
	if target.value-indoor.value <= tempDeltaThreshold {
		return reasonTargetReached
	}
	return ""
}
