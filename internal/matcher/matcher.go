package matcher

import (
	"time"

	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// Match is one qualifying traversal of a segment by a track.
type Match struct {
	StartFraction float64
	EndFraction   float64
	StartedAt     time.Time
	ElapsedS      float64
	MovingTimeS   float64
	AvgSpeedMps   float64
	MaxSpeedMps   float64
}

// Matcher applies the traversal rules: both segment endpoints must project
// onto the track within the tolerance radius, the start projection must
// precede the end projection, and the spanned track distance must cover the
// configured fraction of the segment's own length.
type Matcher struct {
	log             *logger.Logger
	toleranceM      float64
	overlapFraction float64
	stopSpeedMps    float64
}

func New(baseLog *logger.Logger, toleranceM, overlapFraction, stopSpeedMps float64) *Matcher {
	return &Matcher{
		log:             baseLog.With("component", "Matcher"),
		toleranceM:      toleranceM,
		overlapFraction: overlapFraction,
		stopSpeedMps:    stopSpeedMps,
	}
}

// MatchTrack scans a full track against one segment. A track that crosses the
// segment several times keeps only the fastest qualifying crossing; a
// reverse-direction pass never pairs a start projection with a later end
// projection and so produces nothing. Tracks without timestamps cannot be
// timed and yield no match.
func (m *Matcher) MatchTrack(pts []geo.Point, seg *types.Segment) (*Match, bool) {
	if len(pts) < 2 || seg.DistanceM <= 0 {
		return nil, false
	}
	cum := geo.CumulativeDistances(pts)
	trackLen := cum[len(cum)-1]
	if trackLen <= 0 {
		return nil, false
	}

	starts := geo.ProjectionsWithin(pts, cum, seg.StartPoint(), m.toleranceM)
	if len(starts) == 0 {
		return nil, false
	}
	ends := geo.ProjectionsWithin(pts, cum, seg.EndPoint(), m.toleranceM)
	if len(ends) == 0 {
		return nil, false
	}

	var best *Match
	for _, s := range starts {
		for _, e := range ends {
			if e.Fraction <= s.Fraction {
				continue
			}
			span := (e.Fraction - s.Fraction) * trackLen
			if span < m.overlapFraction*seg.DistanceM {
				continue
			}
			c, ok := m.timeCrossing(pts, cum, s.Fraction, e.Fraction, span)
			if !ok {
				continue
			}
			if best == nil || c.ElapsedS < best.ElapsedS {
				best = c
			}
			// Later end projections for the same start only widen the
			// span and slow the crossing.
			break
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func (m *Matcher) timeCrossing(pts []geo.Point, cum []float64, sFrac, eFrac, spanM float64) (*Match, bool) {
	startAt, ok := geo.TimeAtFraction(pts, cum, sFrac)
	if !ok {
		return nil, false
	}
	endAt, ok := geo.TimeAtFraction(pts, cum, eFrac)
	if !ok {
		return nil, false
	}
	elapsed := endAt.Sub(startAt).Seconds()
	if elapsed <= 0 {
		return nil, false
	}

	movingS, maxMps := m.spanSpeeds(pts, cum, sFrac, eFrac)
	if movingS <= 0 || movingS > elapsed {
		movingS = elapsed
	}
	return &Match{
		StartFraction: sFrac,
		EndFraction:   eFrac,
		StartedAt:     startAt,
		ElapsedS:      elapsed,
		MovingTimeS:   movingS,
		AvgSpeedMps:   spanM / movingS,
		MaxSpeedMps:   maxMps,
	}, true
}

// spanSpeeds walks the points inside the fractional window and accumulates
// moving time (stop detection by speed threshold) and max inter-point speed.
func (m *Matcher) spanSpeeds(pts []geo.Point, cum []float64, sFrac, eFrac float64) (float64, float64) {
	total := cum[len(cum)-1]
	lo, hi := sFrac*total, eFrac*total

	var movingS, maxMps float64
	for i := 1; i < len(pts); i++ {
		if cum[i] < lo {
			continue
		}
		if cum[i-1] > hi {
			break
		}
		a, b := pts[i-1], pts[i]
		if a.Time == nil || b.Time == nil {
			continue
		}
		dt := b.Time.Sub(*a.Time).Seconds()
		if dt <= 0 {
			continue
		}
		v := geo.Haversine(a, b) / dt
		if v >= m.stopSpeedMps {
			movingS += dt
		}
		if v > maxMps {
			maxMps = v
		}
	}
	return movingS, maxMps
}
