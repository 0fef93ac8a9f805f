package planner

// Cell is one position of a grid layout.
type Cell struct {
	// Index is the item's position within its group
	Index int

	// Row and Col locate the cell in the grid
	Row int
	Col int

	// Top and Left are the pixel offsets of the cell's upper-left corner
	Top  int
	Left int
}

// Layout maps the items of one group onto a grid of fixed-size tiles.
type Layout struct {
	// Side is the number of tiles per row
	Side int

	// Rows is the number of tile rows on the canvas
	Rows int

	// TileSize is the edge length of a tile in pixels
	TileSize int

	// Cells holds one cell per item, in item order
	Cells []Cell
}

// Plan computes the layout for count items placed row-major on a grid with
// side tiles per row. The canvas is as tall as the items need; use Square
// to pad it to side rows.
func Plan(count, tileSize, side int) Layout {
	if side < 1 {
		side = 1
	}
	if count < 0 {
		count = 0
	}

	layout := Layout{
		Side:     side,
		Rows:     (count + side - 1) / side,
		TileSize: tileSize,
		Cells:    make([]Cell, count),
	}
	for i := range count {
		row := i / side
		col := i % side
		layout.Cells[i] = Cell{
			Index: i,
			Row:   row,
			Col:   col,
			Top:   row * tileSize,
			Left:  col * tileSize,
		}
	}
	return layout
}

// Square returns a copy of the layout whose canvas is Side rows tall, so
// every sheet planned with the same side has identical dimensions.
func (l Layout) Square() Layout {
	if l.Rows < l.Side {
		l.Rows = l.Side
	}
	return l
}

// Width returns the canvas width in pixels.
func (l Layout) Width() int {
	return l.Side * l.TileSize
}

// Height returns the canvas height in pixels.
func (l Layout) Height() int {
	return l.Rows * l.TileSize
}
