package dashboard

import "strings"

var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders percentages (0-100) as a single row of block
// characters. Only the last width points are drawn; shorter series are
// left-padded with spaces so columns stay aligned.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", width-len(data)))
	for _, v := range data {
		b.WriteRune(sparklineBlocks[blockIndex(v)])
	}
	return b.String()
}

func blockIndex(percent float64) int {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return len(sparklineBlocks) - 1
	}
	return int(percent / 100 * float64(len(sparklineBlocks)-1))
}

// ColoredSparkline colors the sparkline by its most recent value.
func ColoredSparkline(data []float64, width int) string {
	line := Sparkline(data, width)
	if len(data) == 0 {
		return line
	}
	return MetricStyle(data[len(data)-1]).Render(line)
}
