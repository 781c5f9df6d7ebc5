package history

import "strings"

// Kind tells where an entity keeps its values.
type Kind int

const (
	// KindScalar entities carry a single numeric or boolean state string.
	KindScalar Kind = iota
	// KindStructured entities (climate.*) expose temperatures and heating
	// status as named attributes.
	KindStructured
)

const structuredPrefix = "climate."

// Climate attribute names.
const (
	AttrCurrentTemperature  = "current_temperature"
	AttrTargetTemperature   = "temperature"
	AttrExternalTemperature = "ext_current_temperature"
	AttrHumidity            = "humidity"
	AttrHVACAction          = "hvac_action"
	AttrHVACMode            = "hvac_mode"
)

// ClassifyEntity returns the kind of the entity from its id.
func ClassifyEntity(entityID string) Kind {
	if strings.HasPrefix(entityID, structuredPrefix) {
		return KindStructured
	}
	return KindScalar
}

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	default:
		return "scalar"
	}
}
