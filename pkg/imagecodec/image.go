package imagecodec

import (
	"encoding/binary"
	"fmt"
)

// DecodedImage is an RGBA8 raster, spec.md §3: pixel buffer length
// always equals width*height*4 (invariant 3).
type DecodedImage struct {
	Width  int
	Height int
	Pixels []byte // width*height*4 bytes, RGBA8
}

// validate enforces invariant 3: strictly positive dimensions and a
// pixel buffer of the exact expected length.
func (d DecodedImage) validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("imagecodec: non-positive dimensions %dx%d", d.Width, d.Height)
	}
	want := d.Width * d.Height * 4
	if len(d.Pixels) != want {
		return fmt.Errorf("imagecodec: pixel buffer length %d, want %d for %dx%d", len(d.Pixels), want, d.Width, d.Height)
	}
	return nil
}

// marshalDecodedImage encodes a DecodedImage using the fixed
// little-endian layout spec.md §4.3 requires for cache-ABI stability:
// width (u32 LE), height (u32 LE), raw RGBA bytes. Used by both the
// Decoder and Resizer caches (§4.4: "Value layout identical to the
// Decoder's").
func marshalDecodedImage(img DecodedImage) []byte {
	buf := make([]byte, 8+len(img.Pixels))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(img.Width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(img.Height))
	copy(buf[8:], img.Pixels)
	return buf
}

func unmarshalDecodedImage(b []byte) (DecodedImage, error) {
	if len(b) < 8 {
		return DecodedImage{}, fmt.Errorf("imagecodec: cache entry too short (%d bytes)", len(b))
	}
	width := int(binary.LittleEndian.Uint32(b[0:4]))
	height := int(binary.LittleEndian.Uint32(b[4:8]))
	img := DecodedImage{Width: width, Height: height, Pixels: b[8:]}
	if err := img.validate(); err != nil {
		return DecodedImage{}, err
	}
	return img, nil
}
