package monitor

import (
	"encoding/binary"
	"math"
	"time"
)

// Field tags used by the AIRCO2NTROL report protocol.
const (
	TagCO2         = 0x50
	TagTemperature = 0x42
	TagHumidity    = 0x41
)

const (
	reportSize = 8
	// A report carries the tag byte plus a big-endian 16-bit raw value.
	minReportSize = 3

	kelvinOffset    = 273.15
	temperatureStep = 16.0
	humidityStep    = 100.0
)

// Snapshot is one complete, timestamped set of measurements. It is only
// constructed once all three fields have been read from the device.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CO2PPM      uint16    `json:"co2_ppm"`
	Temperature float64   `json:"temperature_celsius"`
	Humidity    float64   `json:"humidity_percent"`
}

// decodeReport extracts the field tag and raw value from one report.
// Bytes past the value are unused by this protocol revision.
func decodeReport(p []byte) (tag byte, value uint16) {
	return p[0], binary.BigEndian.Uint16(p[1:3])
}

// reading accumulates decoded fields until a snapshot can be formed.
type reading struct {
	co2         uint16
	temperature float64
	humidity    float64

	hasCO2         bool
	hasTemperature bool
	hasHumidity    bool
}

// apply updates the field addressed by tag, converting the raw value to
// its physical unit. A repeated tag overwrites the earlier value within
// the same cycle; unknown tags are ignored.
func (r *reading) apply(tag byte, value uint16) {
	switch tag {
	case TagCO2:
		r.co2 = value
		r.hasCO2 = true
	case TagTemperature:
		r.temperature = round2(float64(value)/temperatureStep - kelvinOffset)
		r.hasTemperature = true
	case TagHumidity:
		r.humidity = round2(float64(value) / humidityStep)
		r.hasHumidity = true
	}
}

func (r *reading) complete() bool {
	return r.hasCO2 && r.hasTemperature && r.hasHumidity
}

func (r *reading) snapshot(timestamp time.Time) Snapshot {
	return Snapshot{
		Timestamp:   timestamp,
		CO2PPM:      r.co2,
		Temperature: r.temperature,
		Humidity:    r.humidity,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
