package render

import (
	"encoding/binary"
	"image"
)

// 1-bit BMP layout: 14 byte file header, 40 byte BITMAPINFOHEADER,
// two palette entries, then bottom-up rows padded to 4 bytes. Target
// firmware only decodes bottom-up, so the height is always positive.
const (
	bmpFileHeaderSize = 14
	bmpInfoHeaderSize = 40
	bmpPaletteSize    = 8
	bmpHeaderSize     = bmpFileHeaderSize + bmpInfoHeaderSize + bmpPaletteSize
)

// bmpStride is the padded row size in bytes for a 1 bpp image.
func bmpStride(width int) int {
	return ((width + 31) / 32) * 4
}

// encodeBMP1 quantizes a grey frame to 1 bit and serializes it.
// Pixels below 128 become palette index 0 (black).
func encodeBMP1(img *image.Gray) []byte {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	stride := bmpStride(w)
	fileSize := bmpHeaderSize + stride*h

	out := make([]byte, fileSize)

	// BITMAPFILEHEADER
	out[0] = 'B'
	out[1] = 'M'
	binary.LittleEndian.PutUint32(out[2:], uint32(fileSize))
	binary.LittleEndian.PutUint32(out[10:], bmpHeaderSize)

	// BITMAPINFOHEADER
	info := out[bmpFileHeaderSize:]
	binary.LittleEndian.PutUint32(info[0:], bmpInfoHeaderSize)
	binary.LittleEndian.PutUint32(info[4:], uint32(w))
	binary.LittleEndian.PutUint32(info[8:], uint32(h))
	binary.LittleEndian.PutUint16(info[12:], 1) // planes
	binary.LittleEndian.PutUint16(info[14:], 1) // bits per pixel
	binary.LittleEndian.PutUint32(info[16:], 0) // BI_RGB
	binary.LittleEndian.PutUint32(info[20:], uint32(stride*h))
	binary.LittleEndian.PutUint32(info[32:], 2) // colours used

	// Palette: index 0 black, index 1 white, BGRA order.
	palette := out[bmpFileHeaderSize+bmpInfoHeaderSize:]
	palette[4], palette[5], palette[6] = 0xFF, 0xFF, 0xFF

	pixels := out[bmpHeaderSize:]
	for y := 0; y < h; y++ {
		// Bottom-up row order.
		row := pixels[(h-1-y)*stride:]
		for x := 0; x < w; x++ {
			if img.GrayAt(img.Rect.Min.X+x, img.Rect.Min.Y+y).Y >= 128 {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
	}

	return out
}
