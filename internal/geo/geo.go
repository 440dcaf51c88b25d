package geo

import (
	"math"
	"time"
)

const (
	earthRadiusM = 6371000.0
	// metersPerDegLat is close enough for tolerance-sized distances anywhere on Earth.
	metersPerDegLat = 111320.0
)

// Point is one sample of a recorded path. Elevation and Time are optional:
// upstream ingestion does not guarantee either.
type Point struct {
	Lon       float64    `json:"lon"`
	Lat       float64    `json:"lat"`
	Elevation *float64   `json:"ele,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PathLength returns the summed inter-point distance of pts in meters.
func PathLength(pts []Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += Haversine(pts[i-1], pts[i])
	}
	return total
}

// CumulativeDistances returns, for each point, the path distance from pts[0].
// len(result) == len(pts); result[0] == 0.
func CumulativeDistances(pts []Point) []float64 {
	out := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		out[i] = out[i-1] + Haversine(pts[i-1], pts[i])
	}
	return out
}

// Projection is the result of projecting a point onto a polyline.
type Projection struct {
	// Fraction is the fractional position in [0,1] along the polyline's length.
	Fraction float64
	// Distance is the meters between the query point and the closest point.
	Distance float64
}

// ClosestPointFraction projects p onto the polyline pts and returns the
// fractional position of the closest point along the line together with the
// separation distance. The projection works in a local flat approximation,
// which is accurate at tolerance-radius scales.
func ClosestPointFraction(pts []Point, cum []float64, p Point) Projection {
	if len(pts) == 0 {
		return Projection{Fraction: 0, Distance: math.Inf(1)}
	}
	if len(pts) == 1 {
		return Projection{Fraction: 0, Distance: Haversine(pts[0], p)}
	}

	total := cum[len(cum)-1]
	best := Projection{Distance: math.Inf(1)}

	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		t, d := projectOntoSpan(a, b, p)
		if d < best.Distance {
			at := cum[i-1] + t*(cum[i]-cum[i-1])
			frac := 0.0
			if total > 0 {
				frac = at / total
			}
			best = Projection{Fraction: frac, Distance: d}
		}
	}
	return best
}

// projectOntoSpan projects p onto the span a->b in a local equirectangular
// plane centered on a. Returns the clamped span parameter in [0,1] and the
// distance from p to the projected point in meters.
func projectOntoSpan(a, b, p Point) (float64, float64) {
	mLat := metersPerDegLat
	mLon := metersPerDegLon(a.Lat)

	ax, ay := 0.0, 0.0
	bx := (b.Lon - a.Lon) * mLon
	by := (b.Lat - a.Lat) * mLat
	px := (p.Lon - a.Lon) * mLon
	py := (p.Lat - a.Lat) * mLat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, math.Hypot(px, py)
	}
	t := (px*dx + py*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	cx, cy := t*dx, t*dy
	return t, math.Hypot(px-cx, py-cy)
}

func metersPerDegLon(lat float64) float64 {
	m := metersPerDegLat * math.Cos(lat*math.Pi/180)
	// Keep the grid conservative near the poles instead of collapsing cells.
	if m < 1000 {
		m = 1000
	}
	return m
}

// PointAtFraction linearly interpolates position along pts at frac in [0,1].
func PointAtFraction(pts []Point, cum []float64, frac float64) Point {
	if len(pts) == 0 {
		return Point{}
	}
	if len(pts) == 1 || frac <= 0 {
		return pts[0]
	}
	total := cum[len(cum)-1]
	if frac >= 1 || total == 0 {
		return pts[len(pts)-1]
	}
	target := frac * total
	for i := 1; i < len(pts); i++ {
		if cum[i] >= target {
			span := cum[i] - cum[i-1]
			t := 0.0
			if span > 0 {
				t = (target - cum[i-1]) / span
			}
			return Point{
				Lon: pts[i-1].Lon + t*(pts[i].Lon-pts[i-1].Lon),
				Lat: pts[i-1].Lat + t*(pts[i].Lat-pts[i-1].Lat),
			}
		}
	}
	return pts[len(pts)-1]
}

// TimeAtFraction interpolates the recorded timestamps at frac along pts.
// Returns false when the surrounding points carry no timestamps.
func TimeAtFraction(pts []Point, cum []float64, frac float64) (time.Time, bool) {
	if len(pts) == 0 {
		return time.Time{}, false
	}
	if len(pts) == 1 || frac <= 0 {
		if pts[0].Time == nil {
			return time.Time{}, false
		}
		return *pts[0].Time, true
	}
	total := cum[len(cum)-1]
	if frac >= 1 || total == 0 {
		last := pts[len(pts)-1]
		if last.Time == nil {
			return time.Time{}, false
		}
		return *last.Time, true
	}
	target := frac * total
	for i := 1; i < len(pts); i++ {
		if cum[i] >= target {
			a, b := pts[i-1], pts[i]
			if a.Time == nil || b.Time == nil {
				return time.Time{}, false
			}
			span := cum[i] - cum[i-1]
			t := 0.0
			if span > 0 {
				t = (target - cum[i-1]) / span
			}
			dt := b.Time.Sub(*a.Time)
			return a.Time.Add(time.Duration(t * float64(dt))), true
		}
	}
	last := pts[len(pts)-1]
	if last.Time == nil {
		return time.Time{}, false
	}
	return *last.Time, true
}

// ProjectionsWithin returns every local closest approach of the polyline pts
// to p that comes within tolM meters, ordered by fraction. Consecutive spans
// inside the tolerance band collapse to the single best approach, so a track
// that passes a point three times yields three projections.
func ProjectionsWithin(pts []Point, cum []float64, p Point, tolM float64) []Projection {
	if len(pts) < 2 {
		return nil
	}
	total := cum[len(cum)-1]
	var out []Projection
	inBand := false
	var best Projection

	for i := 1; i < len(pts); i++ {
		t, d := projectOntoSpan(pts[i-1], pts[i], p)
		if d <= tolM {
			at := cum[i-1] + t*(cum[i]-cum[i-1])
			frac := 0.0
			if total > 0 {
				frac = at / total
			}
			if !inBand || d < best.Distance {
				best = Projection{Fraction: frac, Distance: d}
			}
			inBand = true
			continue
		}
		if inBand {
			out = append(out, best)
			inBand = false
		}
	}
	if inBand {
		out = append(out, best)
	}
	return out
}

// BoundingBox is an axis-aligned lon/lat rectangle.
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Bounds returns the bounding box of pts. Zero box for an empty slice.
func Bounds(pts []Point) BoundingBox {
	if len(pts) == 0 {
		return BoundingBox{}
	}
	bb := BoundingBox{
		MinLon: pts[0].Lon, MaxLon: pts[0].Lon,
		MinLat: pts[0].Lat, MaxLat: pts[0].Lat,
	}
	for _, p := range pts[1:] {
		bb.MinLon = math.Min(bb.MinLon, p.Lon)
		bb.MaxLon = math.Max(bb.MaxLon, p.Lon)
		bb.MinLat = math.Min(bb.MinLat, p.Lat)
		bb.MaxLat = math.Max(bb.MaxLat, p.Lat)
	}
	return bb
}

// Expand grows the box by radius meters on every side.
func (bb BoundingBox) Expand(radiusM float64) BoundingBox {
	dLat := radiusM / metersPerDegLat
	midLat := (bb.MinLat + bb.MaxLat) / 2
	dLon := radiusM / metersPerDegLon(midLat)
	return BoundingBox{
		MinLon: bb.MinLon - dLon,
		MinLat: bb.MinLat - dLat,
		MaxLon: bb.MaxLon + dLon,
		MaxLat: bb.MaxLat + dLat,
	}
}

// Intersects reports whether the two boxes overlap.
func (bb BoundingBox) Intersects(other BoundingBox) bool {
	return bb.MinLon <= other.MaxLon && bb.MaxLon >= other.MinLon &&
		bb.MinLat <= other.MaxLat && bb.MaxLat >= other.MinLat
}
