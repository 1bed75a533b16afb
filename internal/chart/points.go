// Package chart turns portfolio totals and coin sparklines into plottable
// series and a few summary statistics.
package chart

import "strings"

// Point is one labelled value on a chart.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DefaultTail is how many sparkline points a coin chart shows.
const DefaultTail = 30

// TwoPoint builds the portfolio value chart: yesterday's value implied by the
// 24h change, and today's value.
func TwoPoint(total, change24h float64) []Point {
	return []Point{
		{Label: "Yesterday", Value: total * (1 - change24h/100)},
		{Label: "Today", Value: total},
	}
}

// Tail returns the last n prices. n <= 0 uses DefaultTail.
func Tail(prices []float64, n int) []float64 {
	if n <= 0 {
		n = DefaultTail
	}
	if len(prices) <= n {
		return prices
	}
	return prices[len(prices)-n:]
}

var bars = []rune("▁▂▃▄▅▆▇█")

// Spark renders prices as a one-line block chart.
func Spark(prices []float64) string {
	high, low, err := Range(prices)
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range prices {
		pos, _ := Position(p, high, low)
		i := int(pos * float64(len(bars)-1))
		b.WriteRune(bars[i])
	}
	return b.String()
}
