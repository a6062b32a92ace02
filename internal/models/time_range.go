package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeRange is a chart display range. Days <= 0 means the entire history.
type TimeRange struct {
	Label string  `json:"label"`
	Days  float64 `json:"days"`
}

var (
	Range1D  = TimeRange{Label: "1D", Days: 1}
	Range7D  = TimeRange{Label: "7D", Days: 7}
	Range30D = TimeRange{Label: "30D", Days: 30}
	Range90D = TimeRange{Label: "90D", Days: 90}
	Range180 = TimeRange{Label: "180D", Days: 180}
	Range1Y  = TimeRange{Label: "1Y", Days: 365}
	RangeMax = TimeRange{Label: "MAX", Days: 0}

	// TickRange is the narrow window the live poll uses to pick up the newest
	// sample. It is not user-selectable.
	TickRange = TimeRange{Label: "LIVE", Days: 0.02}
)

// DisplayRanges lists the selectable ranges in toolbar order.
var DisplayRanges = []TimeRange{Range1D, Range7D, Range30D, Range90D, Range180, Range1Y, RangeMax}

// ParseTimeRange accepts a toolbar label ("7D", "1y", "max") or a plain day
// count that matches one of the display ranges ("7", "365").
func ParseTimeRange(s string) (TimeRange, error) {
	s = strings.TrimSpace(s)
	for _, r := range DisplayRanges {
		if strings.EqualFold(r.Label, s) || (r.IsMax() && strings.EqualFold(s, "max")) {
			return r, nil
		}
	}
	if days, err := strconv.ParseFloat(s, 64); err == nil {
		for _, r := range DisplayRanges {
			if !r.IsMax() && r.Days == days {
				return r, nil
			}
		}
	}
	return TimeRange{}, fmt.Errorf("unsupported time range %q", s)
}

func (r TimeRange) IsMax() bool { return r.Days <= 0 }

// Param renders the range as the upstream "days" query value.
func (r TimeRange) Param() string {
	if r.IsMax() {
		return "max"
	}
	return strconv.FormatFloat(r.Days, 'f', -1, 64)
}

// AxisUnit is the time unit a chart x-axis should use for this range.
func (r TimeRange) AxisUnit() string {
	if r.IsMax() || r.Days >= 7 {
		return "day"
	}
	return "hour"
}

func (r TimeRange) String() string { return r.Label }
