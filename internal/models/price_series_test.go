package models

import (
	"testing"
)

func TestPriceSeries_WindowCapKeepsMostRecent(t *testing.T) {
	for _, windowCap := range []int{1, 2, 5, 240} {
		s := NewPriceSeries(windowCap, nil)
		total := windowCap*2 + 3
		for i := 1; i <= total; i++ {
			if !s.Append(NewPricePoint(int64(i)*1000, float64(i))) {
				t.Fatalf("cap %d: append %d rejected", windowCap, i)
			}
		}

		if s.Len() != windowCap {
			t.Fatalf("cap %d: expected len %d, got %d", windowCap, windowCap, s.Len())
		}

		points := s.Points()
		first := total - windowCap + 1
		for i, p := range points {
			want := int64(first+i) * 1000
			if p.Timestamp.UnixMilli() != want {
				t.Errorf("cap %d: point %d timestamp = %d, want %d", windowCap, i, p.Timestamp.UnixMilli(), want)
			}
			if i > 0 && p.Timestamp.Before(points[i-1].Timestamp) {
				t.Errorf("cap %d: points out of order at %d", windowCap, i)
			}
		}
	}
}

func TestNewPriceSeries_TruncatesInitialLoad(t *testing.T) {
	initial := []PricePoint{
		NewPricePoint(3000, 3),
		NewPricePoint(1000, 1),
		NewPricePoint(4000, 4),
		NewPricePoint(2000, 2),
	}

	s := NewPriceSeries(2, initial)
	points := s.Points()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Timestamp.UnixMilli() != 3000 || points[1].Timestamp.UnixMilli() != 4000 {
		t.Errorf("expected the two newest points, got %v", points)
	}
}

func TestPriceSeries_AppendRejectsOlderPoint(t *testing.T) {
	s := NewPriceSeries(10, []PricePoint{NewPricePoint(1000, 1), NewPricePoint(2000, 2)})

	if s.Append(NewPricePoint(1500, 9)) {
		t.Error("expected out-of-order point to be rejected")
	}
	if s.Len() != 2 {
		t.Errorf("expected len 2, got %d", s.Len())
	}
}

func TestPriceSeries_AppendSameTimestampReplacesLatest(t *testing.T) {
	s := NewPriceSeries(10, []PricePoint{NewPricePoint(1000, 1), NewPricePoint(2000, 2)})

	if !s.Append(NewPricePoint(2000, 2.5)) {
		t.Fatal("expected same-timestamp point with a new price to update the series")
	}
	if s.Append(NewPricePoint(2000, 2.5)) {
		t.Error("expected identical point to be a no-op")
	}

	latest, ok := s.Latest()
	if !ok {
		t.Fatal("expected a latest point")
	}
	if s.Len() != 2 || latest.Price.String() != "2.5" {
		t.Errorf("expected len 2 with latest 2.5, got len %d latest %s", s.Len(), latest.Price)
	}
}

func TestPriceSeries_PointsIsACopy(t *testing.T) {
	s := NewPriceSeries(10, []PricePoint{NewPricePoint(1000, 1)})
	points := s.Points()
	points[0] = NewPricePoint(9000, 9)

	latest, _ := s.Latest()
	if latest.Timestamp.UnixMilli() != 1000 {
		t.Error("mutating the returned slice changed the series")
	}
}
