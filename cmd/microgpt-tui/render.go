package main

import (
	"math"
	"strings"
)

func progressBar(ratio float64, w int) string {
	if w < 10 {
		w = 10
	}
	done := int(math.Round(clamp01(ratio) * float64(w)))
	return strings.Repeat("#", done) + strings.Repeat("-", w-done)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func appendSeries(series []float64, v float64, capN int) []float64 {
	series = append(series, v)
	if len(series) > capN {
		series = series[len(series)-capN:]
	}
	return series
}

func truncateWithEllipsis(s string, maxRunes int) string {
	if maxRunes < 4 {
		maxRunes = 4
	}
	rs := []rune(s)
	if len(rs) <= maxRunes {
		return s
	}
	return string(rs[:maxRunes-1]) + "…"
}

// fitHeight pads or cuts s to exactly h lines.
func fitHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func sparkline(series []float64, width int) string {
	if width < 4 {
		width = 4
	}
	if len(series) == 0 {
		return strings.Repeat(".", width)
	}
	sampled := make([]float64, 0, width)
	if len(series) <= width {
		sampled = append(sampled, series...)
	} else {
		step := float64(len(series)-1) / float64(width-1)
		for i := 0; i < width; i++ {
			idx := min(max(int(math.Round(float64(i)*step)), 0), len(series)-1)
			sampled = append(sampled, series[idx])
		}
	}
	minV, maxV := sampled[0], sampled[0]
	for _, v := range sampled[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	chars := []rune("▁▂▃▄▅▆▇█")
	if maxV == minV {
		return strings.Repeat(string(chars[len(chars)-2]), len(sampled)) + strings.Repeat(string(chars[0]), width-len(sampled))
	}
	var b strings.Builder
	b.Grow(width)
	for _, v := range sampled {
		r := (v - minV) / (maxV - minV)
		pos := min(max(int(math.Round(r*float64(len(chars)-1))), 0), len(chars)-1)
		b.WriteRune(chars[pos])
	}
	for i := len(sampled); i < width; i++ {
		b.WriteRune(chars[0])
	}
	return b.String()
}
