package chessengine

import "errors"

var (
	// ErrOutOfBounds is returned for a move whose From or To square is not
	// on the board.
	ErrOutOfBounds = errors.New("chessengine: square out of bounds")
	// ErrNoPieceToMove means From holds no piece.
	ErrNoPieceToMove = errors.New("chessengine: no piece on from-square")
	// ErrWrongSideToMove means the piece on From belongs to the side not
	// currently on move.
	ErrWrongSideToMove = errors.New("chessengine: piece does not belong to side to move")
	// ErrIllegalMove covers every pseudo-legal-but-rejected and
	// not-pseudo-legal-at-all case: wrong piece geometry, blocked path,
	// capturing own piece, leaving or moving into check, and illegal
	// castling attempts.
	ErrIllegalMove = errors.New("chessengine: illegal move")
	// ErrPromotionRequired means a pawn move reaches the back rank without
	// specifying a promotion kind.
	ErrPromotionRequired = errors.New("chessengine: promotion kind required")
	// ErrPromotionNotAllowed means a promotion kind was given for a move
	// that is not a pawn reaching the back rank.
	ErrPromotionNotAllowed = errors.New("chessengine: promotion kind not allowed here")
	// ErrGameAlreadyOver names a move after a terminal outcome. No
	// function in this package returns it.
	ErrGameAlreadyOver = errors.New("chessengine: game already over")
	// ErrClaimNotAvailable is returned by claimRepetition/claimFiftyMove
	// when the claim's threshold has not been met.
	ErrClaimNotAvailable = errors.New("chessengine: draw claim not available")
)
