package history

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueAt returns the numeric value in effect at t: the value of the latest
// record whose timestamp is not after t. When attr is set the value is read
// from the record attributes (dots address nested maps) instead of the raw
// state. Records with sentinel or non-numeric values are skipped, so an
// earlier valid value is returned instead. ok is false when nothing qualifies.
func ValueAt(h EntityHistory, t time.Time, attr string) (value float64, ok bool) {
	var best time.Time
	for _, rec := range h {
		if rec.Timestamp.IsZero() || rec.Timestamp.After(t) {
			continue
		}
		v, valid := recordValue(rec, attr)
		if !valid {
			continue
		}
		if !ok || !rec.Timestamp.Before(best) {
			best = rec.Timestamp
			value = v
			ok = true
		}
	}
	return value, ok
}

func recordValue(rec StateRecord, attr string) (float64, bool) {
	if attr == "" {
		return ParseValue(rec.State)
	}
	raw, found := Attribute(rec, attr)
	if !found {
		return 0, false
	}
	return ParseValue(raw)
}

// Attribute looks up a possibly dotted attribute path on rec.
func Attribute(rec StateRecord, path string) (any, bool) {
	var cur any = rec.Attributes
	for _, part := range strings.Split(path, ".") {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false
		}
		next, found := m[part]
		if !found {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// IsSentinel reports whether s is one of the placeholder states Home Assistant
// reports for entities without a usable value.
func IsSentinel(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "unknown", "unavailable":
		return true
	}
	return false
}

// ParseValue converts a state string or attribute value to a finite float.
func ParseValue(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case string:
		if IsSentinel(v) {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
