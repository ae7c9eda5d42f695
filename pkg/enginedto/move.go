package enginedto

// GameMoveRequest is the body posted to a variant's game URL. The position is
// transported as a FEN snapshot; the backend owns no game state.
type GameMoveRequest struct {
	FEN string `json:"fen"`
}

// GameMoveResponse is the engine's reply move in standard algebraic notation,
// plus optional evaluation metadata some engines include.
type GameMoveResponse struct {
	MoveSAN      string  `json:"move_san"`
	EvaluationCP *int    `json:"evaluation_cp,omitempty"`
	Comment      string  `json:"comment,omitempty"`
	WinChance    float64 `json:"win_chance,omitempty"`
}

// ErrorResponse is the backend's error payload for a failed move request.
type ErrorResponse struct {
	Error string `json:"error"`
}
