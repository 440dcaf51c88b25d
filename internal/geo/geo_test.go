package geo

import (
	"math"
	"testing"
	"time"
)

func pt(lon, lat float64) Point { return Point{Lon: lon, Lat: lat} }

func timedPt(lon, lat float64, at time.Time) Point {
	return Point{Lon: lon, Lat: lat, Time: &at}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude is about 111.19 km on the sphere.
	d := Haversine(pt(0, 0), pt(0, 1))
	if math.Abs(d-111195) > 100 {
		t.Fatalf("expected ~111195m, got %.1f", d)
	}
	if got := Haversine(pt(12.5, 41.9), pt(12.5, 41.9)); got != 0 {
		t.Fatalf("expected zero distance for identical points, got %f", got)
	}
}

func TestPathLengthAndCumulative(t *testing.T) {
	pts := []Point{pt(0, 0), pt(0.001, 0), pt(0.002, 0)}
	total := PathLength(pts)
	if total <= 0 {
		t.Fatalf("expected positive path length")
	}
	cum := CumulativeDistances(pts)
	if len(cum) != 3 {
		t.Fatalf("expected 3 cumulative entries, got %d", len(cum))
	}
	if cum[0] != 0 {
		t.Fatalf("first cumulative distance must be 0, got %f", cum[0])
	}
	if math.Abs(cum[2]-total) > 1e-9 {
		t.Fatalf("last cumulative distance %f != path length %f", cum[2], total)
	}
	if cum[1] <= cum[0] || cum[2] <= cum[1] {
		t.Fatalf("cumulative distances must increase: %v", cum)
	}
}

func TestClosestPointFraction(t *testing.T) {
	// Straight east-west line at the equator, about 222m long.
	pts := []Point{pt(0, 0), pt(0.001, 0), pt(0.002, 0)}
	cum := CumulativeDistances(pts)

	// Query point just north of the midpoint.
	proj := ClosestPointFraction(pts, cum, pt(0.001, 0.0001))
	if math.Abs(proj.Fraction-0.5) > 0.01 {
		t.Fatalf("expected fraction ~0.5, got %f", proj.Fraction)
	}
	// 0.0001 deg lat is about 11m.
	if math.Abs(proj.Distance-11.1) > 1 {
		t.Fatalf("expected distance ~11m, got %f", proj.Distance)
	}

	// Beyond the end the projection clamps to the last vertex.
	end := ClosestPointFraction(pts, cum, pt(0.005, 0))
	if end.Fraction != 1 {
		t.Fatalf("expected fraction 1 past the end, got %f", end.Fraction)
	}
}

func TestPointAtFraction(t *testing.T) {
	pts := []Point{pt(0, 0), pt(0.002, 0)}
	cum := CumulativeDistances(pts)
	mid := PointAtFraction(pts, cum, 0.5)
	if math.Abs(mid.Lon-0.001) > 1e-9 || math.Abs(mid.Lat) > 1e-9 {
		t.Fatalf("expected midpoint (0.001, 0), got (%f, %f)", mid.Lon, mid.Lat)
	}
	if got := PointAtFraction(pts, cum, -1); got != pts[0] {
		t.Fatalf("fraction below 0 should clamp to the start")
	}
	if got := PointAtFraction(pts, cum, 2); got != pts[1] {
		t.Fatalf("fraction above 1 should clamp to the end")
	}
}

func TestTimeAtFraction(t *testing.T) {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	pts := []Point{
		timedPt(0, 0, start),
		timedPt(0.002, 0, start.Add(100*time.Second)),
	}
	cum := CumulativeDistances(pts)

	at, ok := TimeAtFraction(pts, cum, 0.5)
	if !ok {
		t.Fatalf("expected a timestamp")
	}
	if got := at.Sub(start); got != 50*time.Second {
		t.Fatalf("expected +50s at the midpoint, got %v", got)
	}

	// Untimed points yield no timestamp.
	bare := []Point{pt(0, 0), pt(0.002, 0)}
	if _, ok := TimeAtFraction(bare, CumulativeDistances(bare), 0.5); ok {
		t.Fatalf("expected no timestamp for untimed points")
	}
}

func TestProjectionsWithinMultiplePasses(t *testing.T) {
	// Two eastbound passes near the query point with a northern detour
	// (about 111m away) between them.
	pts := []Point{
		pt(0, 0), pt(0.002, 0),
		pt(0.002, 0.001), pt(0, 0.001),
		pt(0, 0.0001), pt(0.002, 0.0001),
	}
	cum := CumulativeDistances(pts)

	projs := ProjectionsWithin(pts, cum, pt(0.001, 0), 50)
	if len(projs) != 2 {
		t.Fatalf("expected 2 passes, got %d: %+v", len(projs), projs)
	}
	if projs[0].Fraction >= projs[1].Fraction {
		t.Fatalf("projections must be ordered by fraction: %+v", projs)
	}

	// A faraway point never enters the band.
	if got := ProjectionsWithin(pts, cum, pt(1, 1), 50); len(got) != 0 {
		t.Fatalf("expected no projections, got %+v", got)
	}
}

func TestBoundsExpandIntersects(t *testing.T) {
	pts := []Point{pt(0.001, 0.002), pt(0.003, 0.001), pt(0.002, 0.004)}
	bb := Bounds(pts)
	if bb.MinLon != 0.001 || bb.MaxLon != 0.003 || bb.MinLat != 0.001 || bb.MaxLat != 0.004 {
		t.Fatalf("unexpected bounds: %+v", bb)
	}

	grown := bb.Expand(100)
	if grown.MinLon >= bb.MinLon || grown.MaxLat <= bb.MaxLat {
		t.Fatalf("expand should grow the box: %+v vs %+v", grown, bb)
	}

	other := BoundingBox{MinLon: 0.0029, MinLat: 0.0039, MaxLon: 0.01, MaxLat: 0.01}
	if !bb.Intersects(other) {
		t.Fatalf("boxes should intersect")
	}
	far := BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 2, MaxLat: 2}
	if bb.Intersects(far) {
		t.Fatalf("disjoint boxes must not intersect")
	}
}
