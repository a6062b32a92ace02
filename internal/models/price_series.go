package models

import (
	"sort"
)

// PriceSeries is a timestamp-ordered window of the most recent points. Once
// the window cap is reached the oldest points are dropped first.
type PriceSeries struct {
	windowCap int
	points    []PricePoint
}

// NewPriceSeries builds a series from an initial fetch, keeping only the
// windowCap most recent points. A non-positive cap means unbounded.
func NewPriceSeries(windowCap int, initial []PricePoint) *PriceSeries {
	points := make([]PricePoint, len(initial))
	copy(points, initial)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	s := &PriceSeries{windowCap: windowCap, points: points}
	s.truncate()
	return s
}

// Append adds p to the end of the series. A point older than the current
// latest is rejected; a point with the same timestamp replaces the latest.
// Returns true when the series changed.
func (s *PriceSeries) Append(p PricePoint) bool {
	if n := len(s.points); n > 0 {
		last := s.points[n-1]
		switch {
		case p.Timestamp.Before(last.Timestamp):
			return false
		case p.Timestamp.Equal(last.Timestamp):
			if last.Price.Equal(p.Price) {
				return false
			}
			s.points[n-1] = p
			return true
		}
	}

	s.points = append(s.points, p)
	s.truncate()
	return true
}

func (s *PriceSeries) truncate() {
	if s.windowCap <= 0 {
		return
	}
	if over := len(s.points) - s.windowCap; over > 0 {
		n := copy(s.points, s.points[over:])
		s.points = s.points[:n]
	}
}

// Points returns a copy of the retained points in timestamp order.
func (s *PriceSeries) Points() []PricePoint {
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

func (s *PriceSeries) Len() int { return len(s.points) }

// Latest returns the newest point, if any.
func (s *PriceSeries) Latest() (PricePoint, bool) {
	if len(s.points) == 0 {
		return PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}
