package sample

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/pms"
)

// NewAveragingConverter creates a converter that replaces every sample with the
// mean of the last windowSize samples. The AQI is derived again from the
// averaged PM2.5, since the index is not linear across bands.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			buffer := make([]Sample, 0, windowSize)
			for s := range in {
				buffer = append(buffer, s)
				if len(buffer) > windowSize {
					buffer = buffer[1:] // Remove oldest
				}

				select {
				case out <- averageSamples(buffer):
				case <-time.After(time.Second):
					log.Warnf("Averaging converter output channel full")
				}
			}
		}()

		return out
	}
}

// averageSamples averages every measurement field, rounding to nearest.
// Uses the most recent sample's timestamp.
func averageSamples(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	var sums [12]uint64
	for i := range samples {
		for j, f := range samples[i].Measurement.Fields() {
			sums[j] += uint64(*f)
		}
	}

	var avg pms.Measurement
	n := uint64(len(samples))
	for j, f := range avg.Fields() {
		*f = uint16((sums[j] + n/2) / n)
	}

	return FromReading(pms.Reading{
		Timestamp:   samples[len(samples)-1].Timestamp,
		Measurement: avg,
	})
}
