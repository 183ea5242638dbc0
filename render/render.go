// Package render turns a journey into e-ink frames. The canonical
// 800x480 layout is partitioned into named zones; devices fetch only
// the zones whose hash changed since their last poll.
package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/png"
)

// RenderZone draws one zone and encodes it in the profile's format.
// Output is byte-deterministic for equal inputs.
func RenderZone(profile DeviceProfile, zoneID string, data Data) ([]byte, error) {
	zone, ok := zoneByID(profile, zoneID)
	if !ok {
		return nil, fmt.Errorf("unknown zone %q", zoneID)
	}

	full := newCanvas(profile.Width, profile.Height)
	newFrame(full, profile, data).drawZone(zoneID)

	crop := full.img.SubImage(image.Rect(zone.X, zone.Y, zone.X+zone.W, zone.Y+zone.H)).(*image.Gray)
	return encode(profile, crop)
}

// RenderFull draws the whole frame.
func RenderFull(profile DeviceProfile, data Data) ([]byte, error) {
	c := newCanvas(profile.Width, profile.Height)
	f := newFrame(c, profile, data)
	for _, zone := range ListZones(profile, data.Journey) {
		f.drawZone(zone.ID)
	}
	return encode(profile, c.img)
}

// RenderError produces a minimal frame carrying an error message, for
// when rasterizing real data failed. It must not itself fail.
func RenderError(profile DeviceProfile, message string) []byte {
	c := newCanvas(profile.Width, profile.Height)
	c.rect(4, 4, profile.Width-8, profile.Height-8, 2, shadeBlack)
	c.text("RENDER ERROR", 20, 60, true, 22, shadeBlack)
	c.text(truncate(message, 80), 20, 100, false, 14, shadeBlack)

	out, err := encode(profile, c.img)
	if err != nil {
		// PNG encoding of a valid in-memory image cannot fail;
		// BMP never errors. Return an empty frame regardless.
		return nil
	}
	return out
}

// ZoneHash fingerprints a zone's rendered bytes for change detection.
func ZoneHash(profile DeviceProfile, zoneID string, data Data) (uint64, error) {
	rendered, err := RenderZone(profile, zoneID, data)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write([]byte(zoneID))
	h.Write(rendered)
	return h.Sum64(), nil
}

func encode(profile DeviceProfile, img *image.Gray) ([]byte, error) {
	if profile.Format == FormatBMP {
		return encodeBMP1(img), nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
