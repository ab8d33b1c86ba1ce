package domain

// Board is the 6x7 grid. Row 0 is the top row and row Rows-1 the bottom,
// so pieces settle towards higher row indexes.
type Board struct {
	cells [Rows][Columns]Seat
}

func NewBoard() *Board {
	return &Board{}
}

// DropPiece places seat's mark in the lowest empty cell of column.
// A full column, an out of range column or an invalid seat is rejected
// and leaves the board untouched.
func (b *Board) DropPiece(column int, seat Seat) (row int, rejected bool) {
	if b.CheckDrop(column, seat) != nil {
		return -1, true
	}

	// shifting the disk from top to bottom till it
	// reaches the end or another disk
	for row := Rows - 1; row >= 0; row-- {
		if b.cells[row][column] == Empty {
			b.cells[row][column] = seat
			return row, false
		}
	}

	return -1, true
}

// CheckDrop reports why DropPiece would reject the drop, or nil when it
// would be accepted.
func (b *Board) CheckDrop(column int, seat Seat) error {
	switch {
	case !seat.Valid():
		return ErrInvalidSeat
	case column < 0 || column >= Columns:
		return ErrInvalidColumn
	case b.cells[0][column] != Empty:
		return ErrColumnFull
	}
	return nil
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	clone := *b
	return &clone
}

// ValidMoves lists the columns that can still take a piece, left to right.
func (b *Board) ValidMoves() []int {
	moves := make([]int, 0, Columns)
	for c := 0; c < Columns; c++ {
		if b.cells[0][c] == Empty {
			moves = append(moves, c)
		}
	}
	return moves
}

// Cell returns the seat occupying (row, column), or Empty when out of range.
func (b *Board) Cell(row, column int) Seat {
	if !inBounds(row, column) {
		return Empty
	}
	return b.cells[row][column]
}

func (b *Board) IsColumnFull(column int) bool {
	if column < 0 || column >= Columns {
		return true
	}
	return b.cells[0][column] != Empty
}

func (b *Board) IsFull() bool {
	for c := 0; c < Columns; c++ {
		if b.cells[0][c] == Empty {
			return false
		}
	}
	return true
}

// Filled counts occupied cells.
func (b *Board) Filled() int {
	n := 0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			if b.cells[r][c] != Empty {
				n++
			}
		}
	}
	return n
}

// Cells returns a copy of the grid as plain ints, used for persistence.
func (b *Board) Cells() [][]int {
	out := make([][]int, Rows)
	for r := range out {
		out[r] = make([]int, Columns)
		for c := 0; c < Columns; c++ {
			out[r][c] = int(b.cells[r][c])
		}
	}
	return out
}

// CountInDirection counts the contiguous seat cells starting at (row, column)
// itself and stepping by (deltaRow, deltaCol).
func (b *Board) CountInDirection(row, column, deltaRow, deltaCol int, seat Seat) int {
	count := 0
	r, c := row, column
	for inBounds(r, c) && b.cells[r][c] == seat {
		count++
		r += deltaRow
		c += deltaCol
	}
	return count
}

func inBounds(row, column int) bool {
	return row >= 0 && row < Rows && column >= 0 && column < Columns
}
