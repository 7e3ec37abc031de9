package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-arena/internal/rules"
)

const (
	DefaultSize = 512
	minSquare   = 24
	maxSquare   = 128
	margin      = 20
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	lastMoveFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	frameColor     = color.RGBA{28, 31, 46, 255}
	coordinateText = color.RGBA{204, 210, 236, 255}
	whiteInk       = color.RGBA{20, 20, 20, 255}
	blackInk       = color.RGBA{240, 240, 240, 255}
)

var (
	ranks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	files = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

type discKey struct {
	white bool
	size  int
}

// Renderer draws positions as PNG. Rasterized piece discs are cached per size.
type Renderer struct {
	mu    sync.RWMutex
	discs map[discKey]image.Image
}

func New() *Renderer {
	return &Renderer{discs: make(map[discKey]image.Image)}
}

// RenderPNG draws fen with an optional last-move highlight. size is the board edge in
// pixels, excluding the coordinate frame.
func (r *Renderer) RenderPNG(ctx context.Context, fen string, last *rules.Move, size int) ([]byte, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	board := nchess.NewGame(opt).Position().Board()

	square := min(max(size/8, minSquare), maxSquare)
	origin := image.Point{X: margin, Y: margin}
	edge := square*8 + margin*2
	img := image.NewRGBA(image.Rect(0, 0, edge, edge))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	drawSquares(img, square, origin)
	if last != nil {
		for _, s := range []string{last.From, last.To} {
			if sq, ok := parseSquare(s); ok {
				imagedraw.Draw(img, squareRect(sq, square, origin), image.NewUniform(lastMoveFill), image.Point{}, imagedraw.Over)
			}
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := r.drawPieces(img, board, square, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, square, origin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSquares(dst imagedraw.Image, square int, origin image.Point) {
	for _, rank := range ranks {
		for _, file := range files {
			sq := nchess.NewSquare(file, rank)
			clr := lightSquare
			if (int(sq.File())+int(sq.Rank()))%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, squareRect(sq, square, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *Renderer) drawPieces(dst *image.RGBA, board *nchess.Board, square int, origin image.Point) error {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13}
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		white := piece.Color() == nchess.White
		disc, err := r.disc(white, square)
		if err != nil {
			return err
		}
		rect := squareRect(sq, square, origin)
		imagedraw.Draw(dst, rect, disc, image.Point{}, imagedraw.Over)

		ink := blackInk
		if white {
			ink = whiteInk
		}
		drawer.Src = image.NewUniform(ink)
		cx := (rect.Min.X + rect.Max.X) / 2
		baseline := (rect.Min.Y+rect.Max.Y)/2 + basicfont.Face7x13.Ascent/2 - 1
		drawCentered(drawer, pieceLetter(piece.Type()), cx, baseline)
	}
	return nil
}

// disc rasterizes the piece background from a generated SVG.
func (r *Renderer) disc(white bool, size int) (image.Image, error) {
	key := discKey{white: white, size: size}
	r.mu.RLock()
	img, ok := r.discs[key]
	r.mu.RUnlock()
	if ok {
		return img, nil
	}

	fill, stroke := "#1f1f1f", "#e8e8e8"
	if white {
		fill, stroke = "#f8f8f2", "#262626"
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">`+
		`<circle cx="50" cy="50" r="36" fill="%s" stroke="%s" stroke-width="5"/></svg>`, fill, stroke)
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	r.mu.Lock()
	r.discs[key] = rgba
	r.mu.Unlock()
	return rgba, nil
}

func drawCoordinates(dst *image.RGBA, square int, origin image.Point) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateText)}
	ascent := basicfont.Face7x13.Ascent
	for row, rank := range ranks {
		baseline := origin.Y + row*square + square/2 + ascent/2
		drawCentered(drawer, rank.String(), origin.X/2, baseline)
	}
	for col, file := range files {
		cx := origin.X + col*square + square/2
		drawCentered(drawer, file.String(), cx, origin.Y+8*square+margin/2+ascent/2)
	}
}

func drawCentered(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareRect(sq nchess.Square, square int, origin image.Point) image.Rectangle {
	x := origin.X + int(sq.File())*square
	y := origin.Y + (7-int(sq.Rank()))*square
	return image.Rect(x, y, x+square, y+square)
}

func parseSquare(s string) (nchess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func pieceLetter(t nchess.PieceType) string {
	switch t {
	case nchess.King:
		return "K"
	case nchess.Queen:
		return "Q"
	case nchess.Rook:
		return "R"
	case nchess.Bishop:
		return "B"
	case nchess.Knight:
		return "N"
	default:
		return "P"
	}
}
