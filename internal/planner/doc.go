// Package planner computes how a bucket's items are laid out on sheets.
//
// Everything here is pure and deterministic: the same item count and limits
// always produce the same groups, grid sides and pixel offsets. The builders
// in the engine package rely on that to produce byte-identical artifacts for
// unchanged inputs.
//
// Key responsibilities:
//   - Partition an ordered id list into capacity-bounded groups
//   - Choose the grid side for atlas and pixel-summary sheets
//   - Map a tile index to its (row, col) cell and (top, left) offset
package planner
