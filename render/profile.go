package render

import "sort"

// Format selects the wire encoding for a device.
type Format string

const (
	FormatBMP Format = "bmp"
	FormatPNG Format = "png"
)

// DeviceProfile describes one output target. Depth 1 targets are
// threshold-quantized; depth 8 targets keep the grey palette.
type DeviceProfile struct {
	Kind     string
	Width    int
	Height   int
	Depth    int
	Portrait bool
	Format   Format
}

// ContentType is what the HTTP layer sends for this profile.
func (p DeviceProfile) ContentType() string {
	if p.Format == FormatBMP {
		return "image/bmp"
	}
	return "image/png"
}

var profiles = map[string]DeviceProfile{
	"trmnl-og":    {Kind: "trmnl-og", Width: 800, Height: 480, Depth: 1, Format: FormatBMP},
	"trmnl-mini":  {Kind: "trmnl-mini", Width: 600, Height: 448, Depth: 1, Format: FormatBMP},
	"kindle-pw5":  {Kind: "kindle-pw5", Width: 1236, Height: 1648, Depth: 8, Portrait: true, Format: FormatPNG},
	"kindle-pw3":  {Kind: "kindle-pw3", Width: 1072, Height: 1448, Depth: 8, Portrait: true, Format: FormatPNG},
	"inkplate-6":  {Kind: "inkplate-6", Width: 800, Height: 600, Depth: 1, Format: FormatBMP},
	"web-preview": {Kind: "web-preview", Width: 800, Height: 480, Depth: 8, Format: FormatPNG},
}

// ProfileFor resolves a device kind, defaulting to web-preview for
// anything unknown so previews always work.
func ProfileFor(kind string) DeviceProfile {
	if p, ok := profiles[kind]; ok {
		return p
	}
	return profiles["web-preview"]
}

// Profiles lists the known device kinds.
func Profiles() []string {
	kinds := make([]string, 0, len(profiles))
	for kind := range profiles {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
