package aqi

// Category is the EPA health concern level for an AQI value.
type Category int

const (
	Good Category = iota
	Moderate
	UnhealthySensitive
	Unhealthy
	VeryUnhealthy
	Hazardous
)

var categoryNames = [...]string{
	Good:               "good",
	Moderate:           "moderate",
	UnhealthySensitive: "unhealthy for sensitive groups",
	Unhealthy:          "unhealthy",
	VeryUnhealthy:      "very unhealthy",
	Hazardous:          "hazardous",
}

func (c Category) String() string {
	if c < Good || c > Hazardous {
		return "unknown"
	}
	return categoryNames[c]
}

// CategoryOf returns the category an AQI value belongs to.
func CategoryOf(aqi int) Category {
	switch {
	case aqi <= 50:
		return Good
	case aqi <= 100:
		return Moderate
	case aqi <= 150:
		return UnhealthySensitive
	case aqi <= 200:
		return Unhealthy
	case aqi <= 300:
		return VeryUnhealthy
	default:
		return Hazardous
	}
}
