package imagecodec

import "fmt"

// decodeTGABytes is a minimal reader for uncompressed and RLE truecolor
// TGA images (image types 2 and 10, 24 or 32 bits per pixel). No
// library in the retrieved pack offers TGA support (see DESIGN.md), so
// this one codec path is hand-written against the raw format instead
// of a third-party decoder.
func decodeTGABytes(b []byte) (DecodedImage, error) {
	const headerLen = 18
	if len(b) < headerLen {
		return DecodedImage{}, fmt.Errorf("imagecodec: tga header truncated")
	}

	idLength := int(b[0])
	imageType := b[2]
	width := int(b[12]) | int(b[13])<<8
	height := int(b[14]) | int(b[15])<<8
	bpp := int(b[16])

	if width <= 0 || height <= 0 {
		return DecodedImage{}, fmt.Errorf("imagecodec: tga non-positive dimensions %dx%d", width, height)
	}
	if bpp != 24 && bpp != 32 {
		return DecodedImage{}, fmt.Errorf("imagecodec: tga unsupported bit depth %d", bpp)
	}
	if imageType != 2 && imageType != 10 {
		return DecodedImage{}, fmt.Errorf("imagecodec: tga unsupported image type %d", imageType)
	}

	descriptor := b[17]
	topDown := descriptor&0x20 != 0
	bytesPerPixel := bpp / 8

	data := b[headerLen+idLength:]
	pixels := make([]byte, width*height*4)

	writePixel := func(row, col int, src []byte) {
		var r, g, bl, a byte
		bl, g, r = src[0], src[1], src[2]
		if bytesPerPixel == 4 {
			a = src[3]
		} else {
			a = 0xFF
		}
		y := row
		if !topDown {
			y = height - 1 - row
		}
		off := (y*width + col) * 4
		pixels[off], pixels[off+1], pixels[off+2], pixels[off+3] = r, g, bl, a
	}

	if imageType == 2 {
		need := width * height * bytesPerPixel
		if len(data) < need {
			return DecodedImage{}, fmt.Errorf("imagecodec: tga pixel data truncated")
		}
		i := 0
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				writePixel(row, col, data[i:i+bytesPerPixel])
				i += bytesPerPixel
			}
		}
		return DecodedImage{Width: width, Height: height, Pixels: pixels}, nil
	}

	// RLE-compressed truecolor (type 10).
	row, col, i := 0, 0, 0
	for row < height {
		if i >= len(data) {
			return DecodedImage{}, fmt.Errorf("imagecodec: tga rle stream truncated")
		}
		packet := data[i]
		i++
		count := int(packet&0x7F) + 1
		if packet&0x80 != 0 {
			if i+bytesPerPixel > len(data) {
				return DecodedImage{}, fmt.Errorf("imagecodec: tga rle run truncated")
			}
			px := data[i : i+bytesPerPixel]
			i += bytesPerPixel
			for n := 0; n < count; n++ {
				writePixel(row, col, px)
				col++
				if col == width {
					col = 0
					row++
				}
			}
		} else {
			for n := 0; n < count; n++ {
				if i+bytesPerPixel > len(data) {
					return DecodedImage{}, fmt.Errorf("imagecodec: tga raw run truncated")
				}
				writePixel(row, col, data[i:i+bytesPerPixel])
				i += bytesPerPixel
				col++
				if col == width {
					col = 0
					row++
				}
			}
		}
	}
	return DecodedImage{Width: width, Height: height, Pixels: pixels}, nil
}
