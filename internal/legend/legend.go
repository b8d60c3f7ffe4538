// Package legend renders colour-ramp legends as PNG images.
package legend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/ndvimap/internal/layers"
	"github.com/disintegration/gift"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 160
	Height = 56

	pad     = 8
	rampTop = 20
	rampBot = 34
)

var ErrEmptyPalette = errors.New("legend palette is empty")

// ParseHex parses "#rrggbb" or "#rgb".
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Ramp returns the colour at t in [0,1] along the palette, interpolating
// linearly between stops.
func Ramp(stops []color.RGBA, t float64) color.RGBA {
	switch {
	case len(stops) == 0:
		return color.RGBA{}
	case len(stops) == 1 || t <= 0:
		return stops[0]
	case t >= 1:
		return stops[len(stops)-1]
	}
	pos := t * float64(len(stops)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := stops[i], stops[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*f + 0.5) }
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// Render draws the legend: title, horizontal ramp, and min/max labels.
// A scale of 2 produces an image for high-density displays.
func Render(l layers.Legend, scale int) (image.Image, error) {
	if len(l.Palette) == 0 {
		return nil, ErrEmptyPalette
	}
	stops := make([]color.RGBA, len(l.Palette))
	for i, hex := range l.Palette {
		c, err := ParseHex(hex)
		if err != nil {
			return nil, err
		}
		stops[i] = c
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 230}), image.Point{}, draw.Src)

	span := Width - 2*pad
	for x := 0; x < span; x++ {
		c := Ramp(stops, float64(x)/float64(span-1))
		for y := rampTop; y < rampBot; y++ {
			img.SetRGBA(pad+x, y, c)
		}
	}

	dr := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	dr.Dot = fixed.P(pad, 14)
	dr.DrawString(l.Title)

	minLabel := strconv.FormatFloat(l.Min, 'f', -1, 64)
	maxLabel := strconv.FormatFloat(l.Max, 'f', -1, 64)
	dr.Dot = fixed.P(pad, Height-8)
	dr.DrawString(minLabel)
	dr.Dot = fixed.P(Width-pad-dr.MeasureString(maxLabel).Ceil(), Height-8)
	dr.DrawString(maxLabel)

	if scale <= 1 {
		return img, nil
	}
	g := gift.New(gift.Resize(Width*scale, 0, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst, nil
}

// WritePNG renders the legend and encodes it as PNG.
func WritePNG(w io.Writer, l layers.Legend, scale int) error {
	img, err := Render(l, scale)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
