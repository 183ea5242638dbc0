package render

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Font search order. /var/task is where serverless bundles land.
var fontDirs = []string{"fonts", "", "/var/task/fonts"}

const (
	regularFontFile = "Inter-Regular.ttf"
	boldFontFile    = "Inter-Bold.ttf"
)

type fontSet struct {
	regular *opentype.Font
	bold    *opentype.Font

	mutex sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size int
}

var (
	fontsOnce sync.Once
	fonts     *fontSet
)

// loadFonts resolves the font set once per process. A missing font
// directory degrades to the built-in bitmap face; rendering never
// fails over fonts.
func loadFonts() *fontSet {
	fontsOnce.Do(func() {
		fonts = &fontSet{faces: map[faceKey]font.Face{}}

		dir, ok := findFontDir()
		if !ok {
			slog.Warn("no font directory found, using built-in bitmap font")
			return
		}

		var err error
		fonts.regular, err = readFont(filepath.Join(dir, regularFontFile))
		if err != nil {
			slog.Warn("loading regular font failed, using built-in bitmap font", "err", err)
			return
		}
		fonts.bold, err = readFont(filepath.Join(dir, boldFontFile))
		if err != nil {
			slog.Warn("loading bold font failed, reusing regular", "err", err)
			fonts.bold = fonts.regular
		}
	})
	return fonts
}

func findFontDir() (string, bool) {
	dirs := make([]string, 0, len(fontDirs))
	for _, d := range fontDirs {
		if d == "" {
			// Relative to the executable, for installs run from
			// outside the build directory.
			exe, err := os.Executable()
			if err != nil {
				continue
			}
			d = filepath.Join(filepath.Dir(exe), "fonts")
		}
		dirs = append(dirs, d)
	}

	for _, d := range dirs {
		if _, err := os.Stat(filepath.Join(d, regularFontFile)); err == nil {
			return d, true
		}
	}
	return "", false
}

func readFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}

// face returns a font.Face for the size, cached. Hinting is disabled
// so rasterization is identical across platforms; grey edge pixels
// are removed by quantization on 1-bit targets.
func (fs *fontSet) face(bold bool, size int) font.Face {
	source := fs.regular
	if bold && fs.bold != nil {
		source = fs.bold
	}
	if source == nil {
		return basicfont.Face7x13
	}

	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	key := faceKey{bold: bold, size: size}
	if f, ok := fs.faces[key]; ok {
		return f
	}
	f, err := opentype.NewFace(source, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	fs.faces[key] = f
	return f
}
