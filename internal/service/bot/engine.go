package bot

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/iamasit07/4-in-a-row/server/internal/domain"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty falls back to Medium for unknown names.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d
	default:
		return Medium
	}
}

func (d Difficulty) depth() int {
	switch d {
	case Hard:
		return 7
	case Medium:
		return 4
	default:
		return 0
	}
}

const (
	scoreWin = 1_000_000
	scoreMax = math.MaxInt32
)

// centerFirst orders the search so alpha-beta cuts early.
var centerFirst = [domain.Columns]int{3, 2, 4, 1, 5, 0, 6}

// BestMove picks a column for seat, or -1 when the board is full.
func BestMove(board *domain.Board, seat domain.Seat, d Difficulty) int {
	moves := board.ValidMoves()
	if len(moves) == 0 {
		return -1
	}

	// An immediate win or a forced block beats any search.
	if col, ok := winningMove(board, seat); ok {
		return col
	}
	if col, ok := winningMove(board, seat.Other()); ok {
		return col
	}

	if d.depth() == 0 {
		return moves[rand.IntN(len(moves))]
	}
	return searchBest(board, seat, d.depth())
}

func winningMove(board *domain.Board, seat domain.Seat) (int, bool) {
	for _, col := range board.ValidMoves() {
		next := board.Clone()
		row, _ := next.DropPiece(col, seat)
		if next.CheckWin(row, col, seat) {
			return col, true
		}
	}
	return -1, false
}

func searchBest(board *domain.Board, seat domain.Seat, depth int) int {
	bestCol := -1
	bestScore := -scoreMax
	alpha, beta := -scoreMax, scoreMax

	for _, col := range centerFirst {
		if board.IsColumnFull(col) {
			continue
		}
		next := board.Clone()
		row, _ := next.DropPiece(col, seat)
		score := minimax(next, row, col, seat, depth-1, alpha, beta, false, seat)
		if bestCol < 0 || score > bestScore {
			bestScore = score
			bestCol = col
		}
		alpha = max(alpha, bestScore)
	}
	return bestCol
}

// minimax scores the position after mover dropped at (row, col), from
// bot's point of view.
func minimax(board *domain.Board, row, col int, mover domain.Seat, depth, alpha, beta int, maximizing bool, bot domain.Seat) int {
	if board.CheckWin(row, col, mover) {
		// prefer quicker wins and slower losses
		if mover == bot {
			return scoreWin + depth
		}
		return -scoreWin - depth
	}
	if depth == 0 || board.IsFull() {
		return evaluate(board, bot)
	}

	next := mover.Other()
	if maximizing {
		best := -scoreMax
		for _, c := range centerFirst {
			if board.IsColumnFull(c) {
				continue
			}
			child := board.Clone()
			r, _ := child.DropPiece(c, next)
			best = max(best, minimax(child, r, c, next, depth-1, alpha, beta, false, bot))
			alpha = max(alpha, best)
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := scoreMax
	for _, c := range centerFirst {
		if board.IsColumnFull(c) {
			continue
		}
		child := board.Clone()
		r, _ := child.DropPiece(c, next)
		best = min(best, minimax(child, r, c, next, depth-1, alpha, beta, true, bot))
		beta = min(beta, best)
		if beta <= alpha {
			break
		}
	}
	return best
}
