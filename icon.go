package trayitem

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"reflect"

	"golang.org/x/sys/cpu"
)

// Icon is a bitmap icon that can be rendered at one or more sizes.
//
// Implementations must be comparable (typically pointer types), as setters
// compare icons to detect changes.
type Icon interface {
	// Sizes returns sizes at which the icon is available. Scalable sources
	// return an empty slice.
	Sizes() []image.Point

	// Image renders the icon at the given size. It returns nil if the icon
	// cannot be rendered at that size.
	Image(size image.Point) image.Image
}

// DefaultIconSizes are rendered when an [Icon] reports no available sizes.
var DefaultIconSizes = []image.Point{{16, 16}, {22, 22}, {32, 32}}

// ImageIcon is an [Icon] made of fixed-size images.
type ImageIcon struct {
	images []image.Image
}

// NewImageIcon returns an [ImageIcon] that provides each image at its own
// size.
func NewImageIcon(images ...image.Image) *ImageIcon {
	return &ImageIcon{images: images}
}

// Sizes returns the sizes of the images, in the order they were given.
func (i *ImageIcon) Sizes() []image.Point {
	sizes := make([]image.Point, 0, len(i.images))
	for _, img := range i.images {
		sizes = append(sizes, img.Bounds().Size())
	}
	return sizes
}

// Image returns the image of the given size, or nil.
func (i *ImageIcon) Image(size image.Point) image.Image {
	for _, img := range i.images {
		if img.Bounds().Size() == size {
			return img
		}
	}
	return nil
}

// ScalableIcon is an [Icon] that renders on demand, such as an SVG source.
type ScalableIcon struct {
	render func(size image.Point) image.Image
}

// NewScalableIcon returns a [ScalableIcon] backed by render.
func NewScalableIcon(render func(size image.Point) image.Image) *ScalableIcon {
	return &ScalableIcon{render: render}
}

// Sizes returns nil. Scalable icons are rendered at the default sizes.
func (s *ScalableIcon) Sizes() []image.Point { return nil }

// Image renders the icon at size.
func (s *ScalableIcon) Image(size image.Point) image.Image {
	if s.render == nil {
		return nil
	}
	return s.render(size)
}

// Pixmap is the wire form of a single icon size.
//
// Bytes holds Width*Height pixels, 4 bytes each, in ARGB channel order and
// network byte order.
type Pixmap struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// IconSet is the wire form of an icon: one [Pixmap] per size. Its D-Bus
// signature is a(iiay).
type IconSet []Pixmap

// EncodeIcon converts icon to its wire form. A nil icon, or one that renders
// nothing, produces an empty set.
func EncodeIcon(icon Icon) IconSet {
	if isNilIcon(icon) {
		return IconSet{}
	}

	sizes := icon.Sizes()
	if len(sizes) == 0 {
		sizes = DefaultIconSizes
	}

	set := make(IconSet, 0, len(sizes))
	for _, size := range sizes {
		img := icon.Image(size)
		if img == nil || img.Bounds().Empty() {
			continue
		}
		set = append(set, imageToPixmap(img))
	}

	return set
}

// imageToPixmap converts img to 32-bit ARGB words and swaps them to network
// byte order.
func imageToPixmap(img image.Image) Pixmap {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]byte, 0, width*height*4)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			word := uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
			data = binary.NativeEndian.AppendUint32(data, word)
		}
	}

	if !cpu.IsBigEndian {
		swapWords(data)
	}

	return Pixmap{
		Width:  int32(width),
		Height: int32(height),
		Bytes:  data,
	}
}

// swapWords reverses byte order of every 32-bit word in data.
func swapWords(data []byte) {
	for i := 0; i+4 <= len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = data[i+3], data[i+2], data[i+1], data[i]
	}
}

// Image decodes the pixmap into a non-premultiplied image.
func (p Pixmap) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, int(p.Width), int(p.Height)))

	for i := 0; i+4 <= len(p.Bytes) && i/4 < int(p.Width)*int(p.Height); i += 4 {
		word := binary.BigEndian.Uint32(p.Bytes[i:])
		img.Pix[i] = uint8(word >> 16)
		img.Pix[i+1] = uint8(word >> 8)
		img.Pix[i+2] = uint8(word)
		img.Pix[i+3] = uint8(word >> 24)
	}

	return img
}

// Best returns the pixmap closest in width to size, preferring larger ones.
func (s IconSet) Best(size int) (Pixmap, bool) {
	if len(s) == 0 {
		return Pixmap{}, false
	}

	best := s[0]
	for _, p := range s[1:] {
		bestDiff, diff := int(best.Width)-size, int(p.Width)-size
		switch {
		case bestDiff < 0 && diff > bestDiff:
			best = p
		case diff >= 0 && diff < bestDiff:
			best = p
		}
	}

	return best, true
}

// NewPixmapFromDBus returns a new [Pixmap] from a D-Bus pixmap structure.
//
// Format of pixmap is as follows
//
//	[<width>, <height>, <bytes>]
//
// Where:
//   - <width>: width of the icon (int32)
//   - <height>: height of the icon (int32)
//   - <bytes>: content of the icon ([]byte)
func NewPixmapFromDBus(pixmap any) (Pixmap, error) {
	data, ok := pixmap.([]any)
	if !ok || len(data) != 3 {
		return Pixmap{}, fmt.Errorf("invalid pixmap format: expected a slice of 3 elements")
	}

	width, ok := data[0].(int32)
	if !ok {
		return Pixmap{}, fmt.Errorf("invalid width type: expected int32")
	}

	height, ok := data[1].(int32)
	if !ok {
		return Pixmap{}, fmt.Errorf("invalid height type: expected int32")
	}

	bytes, ok := data[2].([]byte)
	if !ok {
		return Pixmap{}, fmt.Errorf("invalid bytes format: expected []byte")
	}

	if len(bytes) != int(width)*int(height)*4 {
		return Pixmap{}, fmt.Errorf("invalid bytes length: expected %d, got %d", width*height*4, len(bytes))
	}

	return Pixmap{
		Width:  width,
		Height: height,
		Bytes:  bytes,
	}, nil
}

// sameIcon reports whether a and b are the same icon source.
func sameIcon(a, b Icon) bool {
	if isNilIcon(a) || isNilIcon(b) {
		return isNilIcon(a) && isNilIcon(b)
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

func isNilIcon(icon Icon) bool {
	if icon == nil {
		return true
	}
	v := reflect.ValueOf(icon)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// iconSlot is one icon field of the item: either a symbolic name or a bitmap
// with its cached wire form.
type iconSlot struct {
	name   string
	source Icon
	wire   IconSet
}

// setName stores name and drops the bitmap. It reports whether the slot
// changed.
func (s *iconSlot) setName(name string) bool {
	if s.name == name {
		return false
	}
	s.name = name
	s.source = nil
	s.wire = nil
	return true
}

// setIcon stores icon, clears the name, and re-encodes the wire form. It
// reports whether the slot changed.
func (s *iconSlot) setIcon(icon Icon) bool {
	if s.name == "" && sameIcon(s.source, icon) {
		return false
	}
	s.name = ""
	s.source = icon
	s.wire = EncodeIcon(icon)
	return true
}
