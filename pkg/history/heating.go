package history

import "strings"

// IsHeating reports whether the record says the heating is working.
//
// Structured entities are heating when hvac_action is heating/on, when the
// state is heat/heating, or when hvac_mode is heat. Scalar entities are
// heating when the state is on, heat, heating, true or 1. All comparisons
// ignore case.
func IsHeating(rec StateRecord, kind Kind) bool {
	state := normalize(rec.State)
	if kind == KindStructured {
		switch attrString(rec, AttrHVACAction) {
		case "heating", "on":
			return true
		}
		if state == "heat" || state == "heating" {
			return true
		}
		return attrString(rec, AttrHVACMode) == "heat"
	}

	switch state {
	case "on", "heat", "heating", "true", "1":
		return true
	}
	return false
}

func attrString(rec StateRecord, name string) string {
	v, ok := rec.Attributes[name].(string)
	if !ok {
		return ""
	}
	return normalize(v)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
