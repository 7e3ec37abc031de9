package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/rules"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestRenderPNG(t *testing.T) {
	r := New()
	raw, err := r.RenderPNG(context.Background(), startFEN, &rules.Move{From: "e2", To: "e4"}, 256)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 256+2*margin, img.Bounds().Dx())

	// e4 and a4 are both light squares; only e4 carries the highlight
	e4 := img.At(margin+4*32+2, margin+4*32+2)
	a4 := img.At(margin+0*32+2, margin+4*32+2)
	assert.NotEqual(t, e4, a4)

	assert.Len(t, r.discs, 2)
}

func TestRenderClampsSize(t *testing.T) {
	raw, err := New().RenderPNG(context.Background(), startFEN, nil, 10)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, minSquare*8+2*margin, img.Bounds().Dx())
}

func TestRenderRejectsBadFEN(t *testing.T) {
	_, err := New().RenderPNG(context.Background(), "not a fen", nil, DefaultSize)
	require.Error(t, err)
}

func TestRenderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().RenderPNG(ctx, startFEN, nil, DefaultSize)
	require.ErrorIs(t, err, context.Canceled)
}
