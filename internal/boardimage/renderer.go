// Package boardimage rasterizes the current board into a PNG for the
// "export board" action.
package boardimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize   = 72
	boardSquares = 8
	margin       = 24
)

var (
	lightSquare   = color.RGBA{R: 0xf4, G: 0xc5, B: 0x97, A: 0xff}
	darkSquare    = color.RGBA{R: 0xc8, G: 0x85, B: 0x45, A: 0xff}
	lastMoveTint  = color.RGBA{R: 0xf0, G: 0xe6, B: 0x8c, A: 0xff}
	backgroundCol = color.RGBA{R: 0x28, G: 0x28, B: 0x28, A: 0xff}
	labelCol      = color.RGBA{R: 0xd8, G: 0xd8, B: 0xd8, A: 0xff}
)

// Highlight marks the squares of the most recent move.
type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

// RenderPNG draws the board from the given perspective. flipped=true renders
// from black's point of view.
func RenderPNG(board *nchess.Board, highlight *Highlight, flipped bool) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}

	boardSize := squareSize * boardSquares
	total := boardSize + margin*2
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundCol), image.Point{}, draw.Src)

	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			sq := nchess.NewSquare(file, rank)
			col, row := orient(int(file), int(rank), flipped)
			rect := image.Rect(
				margin+col*squareSize,
				margin+row*squareSize,
				margin+(col+1)*squareSize,
				margin+(row+1)*squareSize,
			)

			fill := squareFill(sq, highlight)
			draw.Draw(img, rect, image.NewUniform(fill), image.Point{}, draw.Src)

			piece := board.Piece(sq)
			if piece == nchess.NoPiece {
				continue
			}
			glyph, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return nil, err
			}
			draw.Draw(img, rect, glyph, image.Point{}, draw.Over)
		}
	}

	drawLabels(img, flipped)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode board png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareFill(sq nchess.Square, highlight *Highlight) color.RGBA {
	if highlight != nil && (sq == highlight.From || sq == highlight.To) {
		return lastMoveTint
	}
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

// orient maps file/rank to pixel grid coordinates for the chosen perspective.
func orient(file, rank int, flipped bool) (col, row int) {
	if flipped {
		return boardSquares - 1 - file, rank
	}
	return file, boardSquares - 1 - rank
}

func drawLabels(img *image.RGBA, flipped bool) {
	files := "abcdefgh"
	boardSize := squareSize * boardSquares
	for i := 0; i < boardSquares; i++ {
		col, _ := orient(i, 0, flipped)
		fx := margin + col*squareSize + squareSize/2 - 3
		drawString(img, fx, margin+boardSize+margin/2+4, string(files[i]))

		_, row := orient(0, i, flipped)
		fy := margin + row*squareSize + squareSize/2 + 4
		drawString(img, margin/2-3, fy, fmt.Sprintf("%d", i+1))
	}
}

func drawString(img *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelCol),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
