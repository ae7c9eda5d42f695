package game

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ColorName returns the full lowercase color name. The rules library's own
// Color.String() is the single-letter FEN form ("w"/"b"), which is wrong for
// display and for stored sessions.
func ColorName(c nchess.Color) string {
	if c == nchess.Black {
		return "black"
	}
	return "white"
}

// ParseColor accepts the full name or the FEN letter, case-insensitively.
func ParseColor(s string) (nchess.Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return nchess.White, true
	case "black", "b":
		return nchess.Black, true
	default:
		return nchess.NoColor, false
	}
}
