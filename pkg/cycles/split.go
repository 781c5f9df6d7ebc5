package cycles

import (
	"errors"
	"math"
	"time"
)

// MinRemainderMinutes is the shortest split remainder kept as an example.
const MinRemainderMinutes = 5.0

// Cycle is a finished, validated heating cycle ready to become examples.
type Cycle struct {
	Start                 time.Time
	StartIndoorTemp       float64
	EndTemp               float64
	DurationMinutes       float64
	OutdoorTemp           float64
	Humidity              float64
	MinutesSinceLastCycle float64
}

// SplitCycle turns c into training examples.
//
// Without splitting (splitMinutes == 0 or a cycle no longer than
// splitMinutes) the result is one example from StartIndoorTemp to EndTemp.
// Otherwise the cycle is cut into floor(duration/splitMinutes) sub-cycles of
// exactly splitMinutes whose boundary temperatures are interpolated at a
// constant heating rate. A remainder of at least MinRemainderMinutes becomes
// a last example ending at the measured EndTemp; shorter remainders are
// dropped. Only the first example carries MinutesSinceLastCycle, and every
// example takes its hour of day from its own start in loc.
//
// Examples that fail NewTrainingExample are left out; their errors are
// joined into the returned error.
func SplitCycle(c Cycle, splitMinutes int, loc *time.Location) ([]TrainingExample, error) {
	if loc == nil {
		loc = time.UTC
	}
	split := float64(splitMinutes)

	if splitMinutes <= 0 || c.DurationMinutes <= split {
		ex, err := c.example(0, c.DurationMinutes, c.StartIndoorTemp, c.EndTemp, c.MinutesSinceLastCycle, loc)
		if err != nil {
			return nil, err
		}
		return []TrainingExample{ex}, nil
	}

	k := int(math.Floor(c.DurationMinutes / split))
	remainder := c.DurationMinutes - float64(k)*split
	rate := (c.EndTemp - c.StartIndoorTemp) / c.DurationMinutes

	var (
		out  []TrainingExample
		errs []error
	)
	add := func(ex TrainingExample, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		out = append(out, ex)
	}

	for i := 0; i < k; i++ {
		from := float64(i) * split
		to := from + split
		since := 0.0
		if i == 0 {
			since = c.MinutesSinceLastCycle
		}
		add(c.example(from, split, c.StartIndoorTemp+rate*from, c.StartIndoorTemp+rate*to, since, loc))
	}

	if remainder >= MinRemainderMinutes {
		from := float64(k) * split
		add(c.example(from, remainder, c.StartIndoorTemp+rate*from, c.EndTemp, 0, loc))
	}

	return out, errors.Join(errs...)
}

// example builds the example starting offset minutes into the cycle.
func (c Cycle) example(offset, duration, indoor, target, since float64, loc *time.Location) (TrainingExample, error) {
	start := c.Start.Add(time.Duration(offset * float64(time.Minute)))
	return NewTrainingExample(TrainingExample{
		OutdoorTemp:           c.OutdoorTemp,
		IndoorTemp:            indoor,
		TargetTemp:            target,
		Humidity:              c.Humidity,
		HourOfDay:             start.In(loc).Hour(),
		MinutesSinceLastCycle: since,
		DurationMinutes:       duration,
		Timestamp:             start,
	})
}
