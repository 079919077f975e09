package sample

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/aqi"
	"github.com/itohio/gopms/pkg/pms"
)

// Sample is a sensor reading together with the AQI derived from it.
type Sample struct {
	Timestamp time.Time
	pms.Measurement
	AQI      int
	Category aqi.Category
}

// Converter is a function type that converts a Reading channel to a Sample channel.
type Converter func(in <-chan pms.Reading) <-chan Sample

// FromReading derives the AQI for a single reading.
func FromReading(r pms.Reading) Sample {
	index := aqi.FromMeasurement(r.Measurement)
	return Sample{
		Timestamp:   r.Timestamp,
		Measurement: r.Measurement,
		AQI:         index,
		Category:    aqi.CategoryOf(index),
	}
}

// NewConverter creates a converter that annotates each reading with its AQI.
// The output channel is closed when the input is.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan pms.Reading) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for r := range in {
				select {
				case out <- FromReading(r):
				case <-time.After(time.Second):
					log.Warnf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}
