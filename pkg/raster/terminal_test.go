package raster

import (
	"image/color"
	"testing"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramebufferDraw(t *testing.T) {
	top := color.RGBA{255, 0, 0, 255}
	bottom := color.RGBA{0, 0, 255, 255}

	w, h := CellSize(3, 2)
	fb := NewFramebuffer(w, h)
	fb.SetPixel(1, 0, top)
	fb.SetPixel(1, 1, bottom)

	scr := uv.NewScreenBuffer(4, 3)
	fb.Draw(scr, uv.Rect(1, 1, 3, 2))

	cell := scr.CellAt(2, 1)
	require.NotNil(t, cell)
	assert.Equal(t, "▀", cell.Content)
	assert.Equal(t, top, cell.Style.Fg)
	assert.Equal(t, bottom, cell.Style.Bg)

	// Transparent pixels leave the terminal colors alone.
	cell = scr.CellAt(1, 1)
	require.NotNil(t, cell)
	assert.Nil(t, cell.Style.Fg)
	assert.Nil(t, cell.Style.Bg)
}

func TestCellSize(t *testing.T) {
	w, h := CellSize(80, 24)
	assert.Equal(t, 80, w)
	assert.Equal(t, 48, h)
}
