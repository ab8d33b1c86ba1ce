package domain

// axes holds one direction per line through a cell; the opposite
// direction is walked by negating it.
var axes = [4][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal \
	{1, -1}, // diagonal /
}

// CheckWin reports whether the piece just dropped at (row, column) completes
// a line of ToWin. Only lines through that cell are inspected.
func (b *Board) CheckWin(row, column int, seat Seat) bool {
	if !seat.Valid() || b.Cell(row, column) != seat {
		return false
	}

	for _, axis := range axes {
		// the origin is counted by both walks
		total := b.CountInDirection(row, column, axis[0], axis[1], seat) +
			b.CountInDirection(row, column, -axis[0], -axis[1], seat) - 1
		if total >= ToWin {
			return true
		}
	}

	return false
}
