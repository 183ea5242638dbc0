package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Grey shades of the e-ink palette. Rendering happens in 8-bit grey;
// 1-bit targets threshold at 128 on emission.
const (
	shadeWhite     uint8 = 0xF5
	shadeLightGrey uint8 = 0xCC
	shadeGrey      uint8 = 0x88
	shadeBlack     uint8 = 0x1A
)

const dashLength = 4

// canvas wraps a grayscale frame with the primitives the zones are
// drawn from. No anti-aliasing anywhere; every pixel is one of the
// four shades.
type canvas struct {
	img   *image.Gray
	fonts *fontSet
}

func newCanvas(w, h int) *canvas {
	c := &canvas{
		img:   image.NewGray(image.Rect(0, 0, w, h)),
		fonts: loadFonts(),
	}
	c.fillRect(0, 0, w, h, shadeWhite)
	return c
}

func (c *canvas) set(x, y int, shade uint8) {
	if image.Pt(x, y).In(c.img.Rect) {
		c.img.SetGray(x, y, color.Gray{Y: shade})
	}
}

func (c *canvas) fillRect(x, y, w, h int, shade uint8) {
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			c.set(px, py, shade)
		}
	}
}

// rect draws a border of the given thickness inside the rectangle.
func (c *canvas) rect(x, y, w, h, thickness int, shade uint8) {
	c.fillRect(x, y, w, thickness, shade)
	c.fillRect(x, y+h-thickness, w, thickness, shade)
	c.fillRect(x, y, thickness, h, shade)
	c.fillRect(x+w-thickness, y, thickness, h, shade)
}

func (c *canvas) hLine(x, y, length int, shade uint8) {
	c.fillRect(x, y, length, 1, shade)
}

func (c *canvas) vLine(x, y, length int, shade uint8) {
	c.fillRect(x, y, 1, length, shade)
}

func (c *canvas) dashedHLine(x, y, length, thickness int, shade uint8) {
	for i := 0; i < length; i += dashLength * 2 {
		seg := dashLength
		if i+seg > length {
			seg = length - i
		}
		c.fillRect(x+i, y, seg, thickness, shade)
	}
}

func (c *canvas) dashedVLine(x, y, length, thickness int, shade uint8) {
	for i := 0; i < length; i += dashLength * 2 {
		seg := dashLength
		if i+seg > length {
			seg = length - i
		}
		c.fillRect(x, y+i, thickness, seg, shade)
	}
}

func (c *canvas) dashedRect(x, y, w, h, thickness int, shade uint8) {
	c.dashedHLine(x, y, w, thickness, shade)
	c.dashedHLine(x, y+h-thickness, w, thickness, shade)
	c.dashedVLine(x, y, h, thickness, shade)
	c.dashedVLine(x+w-thickness, y, h, thickness, shade)
}

// stripes fills a rectangle with diagonal stripes on white.
func (c *canvas) stripes(x, y, w, h int, shade uint8) {
	c.fillRect(x, y, w, h, shadeWhite)
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			if (px+py)%6 < 2 {
				c.set(px, py, shade)
			}
		}
	}
}

func (c *canvas) fillCircle(cx, cy, r int, shade uint8) {
	for py := -r; py <= r; py++ {
		for px := -r; px <= r; px++ {
			if px*px+py*py <= r*r {
				c.set(cx+px, cy+py, shade)
			}
		}
	}
}

func (c *canvas) circle(cx, cy, r int, shade uint8) {
	for py := -r; py <= r; py++ {
		for px := -r; px <= r; px++ {
			d := px*px + py*py
			if d <= r*r && d > (r-1)*(r-1) {
				c.set(cx+px, cy+py, shade)
			}
		}
	}
}

// dashedCircle draws the outline with gaps, for skipped leg markers.
func (c *canvas) dashedCircle(cx, cy, r int, shade uint8) {
	for py := -r; py <= r; py++ {
		for px := -r; px <= r; px++ {
			d := px*px + py*py
			if d <= r*r && d > (r-1)*(r-1) && (px+py+2*r)%5 < 3 {
				c.set(cx+px, cy+py, shade)
			}
		}
	}
}

// text draws a string with its baseline at y. Glyph coverage is
// thresholded per pixel so no intermediate greys appear.
func (c *canvas) text(s string, x, y int, bold bool, size int, shade uint8) {
	face := c.fonts.face(bold, size)
	drawer := font.Drawer{
		Dst:  &thresholdImage{canvas: c, shade: shade},
		Src:  image.NewUniform(color.Gray{Y: shade}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(s)
}

// textWidth measures a string in pixels.
func (c *canvas) textWidth(s string, bold bool, size int) int {
	face := c.fonts.face(bold, size)
	return font.MeasureString(face, s).Ceil()
}

// textHeight is the ascent in pixels, used for vertical centering.
func (c *canvas) textHeight(bold bool, size int) int {
	face := c.fonts.face(bold, size)
	return face.Metrics().Ascent.Ceil()
}

// thresholdImage adapts the canvas for font.Drawer: any draw with
// more than half coverage lands as the target shade, everything else
// is dropped. This is the no-anti-aliasing rule.
type thresholdImage struct {
	canvas *canvas
	shade  uint8
}

func (t *thresholdImage) ColorModel() color.Model { return color.GrayModel }
func (t *thresholdImage) Bounds() image.Rectangle { return t.canvas.img.Rect }
func (t *thresholdImage) At(x, y int) color.Color { return t.canvas.img.At(x, y) }

func (t *thresholdImage) Set(x, y int, c color.Color) {
	grey := color.GrayModel.Convert(c).(color.Gray)
	existing := t.canvas.img.GrayAt(x, y)

	// Coverage shows up as the distance from the background. More
	// than half coverage snaps to the ink shade.
	bg := int(existing.Y)
	blended := int(grey.Y)
	diff := bg - blended
	if diff < 0 {
		diff = -diff
	}
	target := int(t.shade)
	span := bg - target
	if span < 0 {
		span = -span
	}
	if span > 0 && diff*2 >= span {
		t.canvas.set(x, y, t.shade)
	}
}
