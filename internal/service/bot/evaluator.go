package bot

import "github.com/iamasit07/4-in-a-row/server/internal/domain"

const (
	centerWeight     = 20
	twoInRowWeight   = 50
	threeInRowWeight = 500
)

// directions of the four-cell windows scanned from each start cell
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// evaluate scores a non-terminal board for bot: open twos and threes count
// for the side that owns them, center pieces earn a small bonus.
func evaluate(board *domain.Board, bot domain.Seat) int {
	opponent := bot.Other()
	score := 0

	center := domain.Columns / 2
	for r := 0; r < domain.Rows; r++ {
		switch board.Cell(r, center) {
		case bot:
			score += centerWeight
		case opponent:
			score -= centerWeight
		}
	}

	for r := 0; r < domain.Rows; r++ {
		for c := 0; c < domain.Columns; c++ {
			for _, d := range directions {
				score += scoreWindow(board, r, c, d[0], d[1], bot, opponent)
			}
		}
	}
	return score
}

func scoreWindow(board *domain.Board, row, col, dRow, dCol int, bot, opponent domain.Seat) int {
	endRow := row + dRow*(domain.ToWin-1)
	endCol := col + dCol*(domain.ToWin-1)
	if endRow < 0 || endRow >= domain.Rows || endCol < 0 || endCol >= domain.Columns {
		return 0
	}

	mine, theirs := 0, 0
	for i := 0; i < domain.ToWin; i++ {
		switch board.Cell(row+dRow*i, col+dCol*i) {
		case bot:
			mine++
		case opponent:
			theirs++
		}
	}

	// a window holding both colors can never complete
	switch {
	case theirs == 0 && mine == 3:
		return threeInRowWeight
	case theirs == 0 && mine == 2:
		return twoInRowWeight
	case mine == 0 && theirs == 3:
		return -threeInRowWeight
	case mine == 0 && theirs == 2:
		return -twoInRowWeight
	default:
		return 0
	}
}
