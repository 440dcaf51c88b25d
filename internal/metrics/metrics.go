package metrics

import (
	"github.com/openridge/trailforge-backend/internal/geo"
)

// Metric consumes points one at a time and produces a scalar at the end.
// Implementations are independent; adding a metric touches nothing else.
type Metric interface {
	Name() string
	Add(p geo.Point)
	Result() float64
}

// Compute feeds every point to every metric once and returns results by name.
func Compute(pts []geo.Point, metrics ...Metric) map[string]float64 {
	for _, p := range pts {
		for _, m := range metrics {
			m.Add(p)
		}
	}
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		out[m.Name()] = m.Result()
	}
	return out
}

const (
	MetricDistance      = "distance_m"
	MetricDuration      = "duration_s"
	MetricElevationGain = "elevation_gain_m"
	MetricMovingTime    = "moving_time_s"
	MetricMaxSpeed      = "max_speed_mps"
)

// Distance sums great-circle distance between consecutive points.
type Distance struct {
	prev   *geo.Point
	totalM float64
}

func NewDistance() *Distance { return &Distance{} }

func (m *Distance) Name() string { return MetricDistance }

func (m *Distance) Add(p geo.Point) {
	if m.prev != nil {
		m.totalM += geo.Haversine(*m.prev, p)
	}
	cp := p
	m.prev = &cp
}

func (m *Distance) Result() float64 { return m.totalM }

// Duration is last-minus-first timestamp in seconds. Points without
// timestamps are ignored.
type Duration struct {
	first, last *geo.Point
}

func NewDuration() *Duration { return &Duration{} }

func (m *Duration) Name() string { return MetricDuration }

func (m *Duration) Add(p geo.Point) {
	if p.Time == nil {
		return
	}
	cp := p
	if m.first == nil {
		m.first = &cp
	}
	m.last = &cp
}

func (m *Duration) Result() float64 {
	if m.first == nil || m.last == nil {
		return 0
	}
	return m.last.Time.Sub(*m.first.Time).Seconds()
}

// ElevationGain sums positive elevation deltas above a noise threshold.
// Barometer jitter below the threshold does not accumulate.
type ElevationGain struct {
	noiseM float64
	prev   *float64
	gainM  float64
}

func NewElevationGain(noiseM float64) *ElevationGain {
	return &ElevationGain{noiseM: noiseM}
}

func (m *ElevationGain) Name() string { return MetricElevationGain }

func (m *ElevationGain) Add(p geo.Point) {
	if p.Elevation == nil {
		return
	}
	ele := *p.Elevation
	if m.prev != nil {
		delta := ele - *m.prev
		if delta > m.noiseM {
			m.gainM += delta
			m.prev = &ele
		} else if delta < -m.noiseM {
			// Only move the reference downward once the drop is real,
			// so a slow climb through jitter still accumulates.
			m.prev = &ele
		}
		return
	}
	m.prev = &ele
}

func (m *ElevationGain) Result() float64 { return m.gainM }

// MovingTime accumulates time between consecutive points whose implied speed
// is at or above stopSpeedMps. Slower spans count as stopped.
type MovingTime struct {
	stopSpeedMps float64
	prev         *geo.Point
	movingS      float64
}

func NewMovingTime(stopSpeedMps float64) *MovingTime {
	return &MovingTime{stopSpeedMps: stopSpeedMps}
}

func (m *MovingTime) Name() string { return MetricMovingTime }

func (m *MovingTime) Add(p geo.Point) {
	if p.Time == nil {
		return
	}
	if m.prev != nil {
		dt := p.Time.Sub(*m.prev.Time).Seconds()
		if dt > 0 {
			d := geo.Haversine(*m.prev, p)
			if d/dt >= m.stopSpeedMps {
				m.movingS += dt
			}
		}
	}
	cp := p
	m.prev = &cp
}

func (m *MovingTime) Result() float64 { return m.movingS }

// MaxSpeed tracks the fastest inter-point speed.
type MaxSpeed struct {
	prev   *geo.Point
	maxMps float64
}

func NewMaxSpeed() *MaxSpeed { return &MaxSpeed{} }

func (m *MaxSpeed) Name() string { return MetricMaxSpeed }

func (m *MaxSpeed) Add(p geo.Point) {
	if p.Time == nil {
		return
	}
	if m.prev != nil {
		dt := p.Time.Sub(*m.prev.Time).Seconds()
		if dt > 0 {
			if v := geo.Haversine(*m.prev, p) / dt; v > m.maxMps {
				m.maxMps = v
			}
		}
	}
	cp := p
	m.prev = &cp
}

func (m *MaxSpeed) Result() float64 { return m.maxMps }
