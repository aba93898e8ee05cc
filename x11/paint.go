package x11

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	// Icon themes ship PNG files.
	_ "image/png"
)

// iconSizeDirs are the theme directories searched for an icon, closest to
// the tray icon size first.
var iconSizeDirs = []string{"24x24", "22x22", "32x32", "16x16", "48x48", "64x64", "128x128", "256x256"}

// iconDirs returns the directories searched for themed icons, in order.
func iconDirs(themePath string, getenv func(string) string) []string {
	var dirs []string

	if themePath != "" {
		dirs = append(dirs, themePath)
	}

	dataDirs := getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}

	if home := getenv("XDG_DATA_HOME"); home != "" {
		dataDirs = home + ":" + dataDirs
	} else if home := getenv("HOME"); home != "" {
		dataDirs = filepath.Join(home, ".local", "share") + ":" + dataDirs
	}

	for _, base := range strings.Split(dataDirs, ":") {
		if base == "" {
			continue
		}
		for _, size := range iconSizeDirs {
			for _, context := range []string{"apps", "status", "actions", "devices"} {
				dirs = append(dirs, filepath.Join(base, "icons", "hicolor", size, context))
			}
		}
		dirs = append(dirs, filepath.Join(base, "pixmaps"))
	}

	return dirs
}

// loadIcon finds name in dirs and decodes it. name may also be an absolute
// path, as attention movies often are.
func loadIcon(name string, dirs []string) (image.Image, bool) {
	if filepath.IsAbs(name) {
		return decodeFile(name)
	}

	for _, dir := range dirs {
		if img, ok := decodeFile(filepath.Join(dir, name+".png")); ok {
			return img, true
		}
	}

	return nil, false
}

func decodeFile(path string) (image.Image, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, false
	}

	return img, true
}

// scaleNearest scales src to size with nearest neighbour sampling.
func scaleNearest(src image.Image, size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rectangle{Max: size})

	b := src.Bounds()
	if b.Empty() || size.X <= 0 || size.Y <= 0 {
		return dst
	}

	if b.Size() == size {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	for y := 0; y < size.Y; y++ {
		sy := b.Min.Y + y*b.Dy()/size.Y
		for x := 0; x < size.X; x++ {
			sx := b.Min.X + x*b.Dx()/size.X
			dst.Set(x, y, src.At(sx, sy))
		}
	}

	return dst
}

// composeZPixmap draws icon over the background bg, both in the ZPixmap
// format of a 24 or 32 bit TrueColor visual, and returns the result. msb
// selects the MSBFirst image byte order.
func composeZPixmap(bg []byte, icon *image.NRGBA, msb bool) []byte {
	out := make([]byte, len(bg))
	copy(out, bg)

	size := icon.Bounds().Size()
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			i := (y*size.X + x) * 4
			if i+4 > len(out) {
				return out
			}

			c := icon.NRGBAAt(x, y)
			if c.A == 0 {
				continue
			}

			b, g, r := out[i], out[i+1], out[i+2]
			if msb {
				r, g, b = out[i+1], out[i+2], out[i+3]
			}

			r = blend(c.R, r, c.A)
			g = blend(c.G, g, c.A)
			b = blend(c.B, b, c.A)

			if msb {
				out[i], out[i+1], out[i+2], out[i+3] = 0xff, r, g, b
			} else {
				out[i], out[i+1], out[i+2], out[i+3] = b, g, r, 0xff
			}
		}
	}

	return out
}

func blend(fg, bg, alpha uint8) uint8 {
	return uint8((uint32(fg)*uint32(alpha) + uint32(bg)*(255-uint32(alpha)) + 127) / 255)
}

// solidBackground returns a ZPixmap buffer filled with c, used when the
// window background cannot be read back.
func solidBackground(size image.Point, c color.NRGBA, msb bool) []byte {
	out := make([]byte, size.X*size.Y*4)
	for i := 0; i < len(out); i += 4 {
		if msb {
			out[i], out[i+1], out[i+2], out[i+3] = 0xff, c.R, c.G, c.B
		} else {
			out[i], out[i+1], out[i+2], out[i+3] = c.B, c.G, c.R, 0xff
		}
	}
	return out
}
