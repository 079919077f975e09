// Package aqi derives the EPA Air Quality Index from PM2.5 readings.
//
// PM10 is not used because the PMS5003 does not measure that particle size
// accurately.
package aqi

import (
	"github.com/chewxy/math32"

	"github.com/itohio/gopms/pkg/pms"
)

// Breakpoint is one band of the EPA PM2.5 table.
type Breakpoint struct {
	ConcFloor float32 // lowest concentration in the band, µg/m³
	ConcRange float32 // width of the band, µg/m³
	AQIFloor  uint16  // index at ConcFloor
	AQIRange  uint16  // index span of the band
}

// pm25 is ordered by concentration. The last band is open-ended.
var pm25 = [...]Breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 23.4, 51, 49},
	{35.5, 24.3, 101, 49},
	{55.5, 84.9, 151, 49},
	{150.5, 99.9, 201, 99},
	{250.5, 99.9, 301, 99},
	{350.5, 249.9, 401, 99},
	{500.5, 99999.9, 501, 498},
}

// Table returns a copy of the PM2.5 breakpoints.
func Table() []Breakpoint {
	out := make([]Breakpoint, len(pm25))
	copy(out, pm25[:])
	return out
}

// Derive maps a PM2.5 concentration to the EPA AQI by linear interpolation
// inside the band the reading falls in. The result is truncated, not rounded.
// Readings below the first band use the first band.
func Derive(reading uint16) int {
	bp := band(float32(reading))
	aqi := (float32(reading)-bp.ConcFloor)*float32(bp.AQIRange)/bp.ConcRange + float32(bp.AQIFloor)
	return int(math32.Trunc(aqi))
}

// FromMeasurement derives the AQI from the standard-particle PM2.5 value.
func FromMeasurement(m pms.Measurement) int {
	return Derive(m.PM25Std)
}

// band returns the last breakpoint whose floor is not above c.
func band(c float32) Breakpoint {
	i := 0
	for i < len(pm25) && c >= pm25[i].ConcFloor {
		i++
	}
	if i > 0 {
		i--
	}
	return pm25[i]
}
