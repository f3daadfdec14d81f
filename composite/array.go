package composite

import (
	"fmt"

	"github.com/harry-hain/moviepy/clip"
)

// Array lays clips out on a grid, one row per inner slice, and composites
// them side by side. Every cell in a column shares the widest clip's width
// and every cell in a row the tallest clip's height; smaller clips are
// centered in their cell. The result's duration is the envelope of the
// bounded cells.
func Array(rows [][]*clip.VideoClip, opts Options) (*clip.VideoClip, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("composite: empty array")
	}
	cols := len(rows[0])
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("composite: row %d has %d cells, want %d", i, len(row), cols)
		}
	}

	colWidths := make([]int, cols)
	rowHeights := make([]int, len(rows))
	for r, row := range rows {
		for c, cell := range row {
			if cell == nil {
				return nil, fmt.Errorf("composite: nil clip at cell (%d,%d)", r, c)
			}
			w, h := cell.Size()
			if w > colWidths[c] {
				colWidths[c] = w
			}
			if h > rowHeights[r] {
				rowHeights[r] = h
			}
		}
	}

	var totalW, totalH int
	for _, w := range colWidths {
		totalW += w
	}
	for _, h := range rowHeights {
		totalH += h
	}

	var layers []Layer
	y := 0
	for r, row := range rows {
		x := 0
		for c, cell := range row {
			w, h := cell.Size()
			pos := clip.At(float64(x+(colWidths[c]-w)/2), float64(y+(rowHeights[r]-h)/2))
			layers = append(layers, Layer{Clip: cell, Pos: &pos})
			x += colWidths[c]
		}
		y += rowHeights[r]
	}

	opts.Width, opts.Height = totalW, totalH
	return Video(layers, opts)
}
