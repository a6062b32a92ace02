package main

import (
	"math"
	"strings"

	"github.com/codyseavey/crypto-tracker/internal/models"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders prices as a single row of block characters at most width
// cells wide. Longer series are bucketed by taking the last point of each
// bucket.
func sparkline(points []models.PricePoint, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	values := make([]float64, 0, width)
	if len(points) <= width {
		for _, p := range points {
			values = append(values, p.Price.InexactFloat64())
		}
	} else {
		for i := 0; i < width; i++ {
			idx := (i+1)*len(points)/width - 1
			values = append(values, points[idx].Price.InexactFloat64())
		}
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		level := 0
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[level])
	}
	return b.String()
}
