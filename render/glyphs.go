package render

// glyph selects one of the canvas-drawn mode pictograms. They are
// deliberately chunky: a 20 px glyph must survive 1-bit quantization.
type glyph int

const (
	glyphTrain glyph = iota
	glyphTram
	glyphBus
	glyphFerry
	glyphWalk
	glyphCoffee
)

// drawGlyph renders a pictogram into a size x size box at (x, y).
func drawGlyph(c *canvas, g glyph, x, y, size int) {
	if size < 12 {
		size = 12
	}
	u := size / 12 // one grid unit
	if u < 1 {
		u = 1
	}

	switch g {
	case glyphTrain:
		// Body with window band and two wheels.
		c.fillRect(x+u, y, 10*u, 8*u, shadeBlack)
		c.fillRect(x+2*u, y+2*u, 8*u, 2*u, shadeWhite)
		c.fillCircle(x+3*u, y+10*u, u, shadeBlack)
		c.fillCircle(x+9*u, y+10*u, u, shadeBlack)

	case glyphTram:
		// Narrower body, pantograph stroke on top.
		c.hLine(x+3*u, y, 6*u, shadeBlack)
		c.vLine(x+6*u, y, 2*u, shadeBlack)
		c.fillRect(x+2*u, y+2*u, 8*u, 7*u, shadeBlack)
		c.fillRect(x+3*u, y+4*u, 6*u, 2*u, shadeWhite)
		c.fillCircle(x+4*u, y+10*u, u, shadeBlack)
		c.fillCircle(x+8*u, y+10*u, u, shadeBlack)

	case glyphBus:
		// Long body, windscreen at the front.
		c.fillRect(x, y+2*u, 12*u, 7*u, shadeBlack)
		c.fillRect(x+u, y+3*u, 3*u, 2*u, shadeWhite)
		c.fillRect(x+5*u, y+3*u, 6*u, 2*u, shadeWhite)
		c.fillCircle(x+3*u, y+10*u, u, shadeBlack)
		c.fillCircle(x+9*u, y+10*u, u, shadeBlack)

	case glyphFerry:
		// Hull with cabin, wave strokes underneath.
		c.fillRect(x+4*u, y+2*u, 4*u, 3*u, shadeBlack)
		c.fillRect(x+u, y+5*u, 10*u, 3*u, shadeBlack)
		c.hLine(x, y+10*u, 4*u, shadeBlack)
		c.hLine(x+5*u, y+10*u, 4*u, shadeBlack)

	case glyphWalk:
		// Head, torso, stride.
		c.fillCircle(x+6*u, y+2*u, u+1, shadeBlack)
		c.fillRect(x+5*u, y+3*u, 2*u, 4*u, shadeBlack)
		for i := 0; i < 4*u; i++ {
			c.set(x+5*u-i/2, y+7*u+i, shadeBlack)
			c.set(x+5*u-i/2+1, y+7*u+i, shadeBlack)
			c.set(x+7*u+i/2, y+7*u+i, shadeBlack)
			c.set(x+7*u+i/2-1, y+7*u+i, shadeBlack)
		}

	case glyphCoffee:
		// Cup with handle and steam.
		c.vLine(x+4*u, y, 2*u, shadeBlack)
		c.vLine(x+7*u, y, 2*u, shadeBlack)
		c.fillRect(x+2*u, y+3*u, 7*u, 6*u, shadeBlack)
		c.rect(x+9*u, y+4*u, 2*u, 3*u, 1, shadeBlack)
		c.hLine(x+2*u, y+10*u, 7*u, shadeBlack)
	}
}
