package export

import (
	"bufio"
	"fmt"
	"io"
)

type Point struct{ X, Y float64 }

// Trace is one polyline of a plot.
type Trace struct {
	Name   string
	Stroke string
	Points []Point
}

// Bounds returns the box around every point of every trace, padded by 10%
// on each side. Degenerate axes get a unit range.
func Bounds(traces []Trace) (minX, minY, maxX, maxY float64, ok bool) {
	for _, t := range traces {
		for _, p := range t.Points {
			if !ok {
				minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
				ok = true
				continue
			}
			minX, maxX = min(minX, p.X), max(maxX, p.X)
			minY, maxY = min(minY, p.Y), max(maxY, p.Y)
		}
	}
	if !ok {
		return
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	return
}

// TrajectorySVG draws the traces on shared axes. Traces with fewer than two
// points are skipped.
func TrajectorySVG(w io.Writer, traces []Trace, width, height int) error {
	minX, minY, maxX, maxY, ok := Bounds(traces)
	if !ok {
		return fmt.Errorf("export: nothing to draw")
	}
	rangeX := maxX - minX
	rangeY := maxY - minY

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for _, t := range traces {
		if len(t.Points) < 2 {
			continue
		}
		fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, t.Stroke)
		for i, p := range t.Points {
			x := (p.X - minX) / rangeX * float64(width)
			y := float64(height) - (p.Y-minY)/rangeY*float64(height)
			if i == 0 {
				fmt.Fprintf(bw, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(bw, " L%.1f,%.1f", x, y)
			}
		}
		fmt.Fprint(bw, "\"/>\n")
	}

	fmt.Fprint(bw, "</svg>\n")
	return bw.Flush()
}
