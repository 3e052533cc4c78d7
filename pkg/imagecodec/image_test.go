package imagecodec

import "testing"

func TestMarshalUnmarshalDecodedImageRoundTrip(t *testing.T) {
	img := DecodedImage{Width: 3, Height: 2, Pixels: make([]byte, 3*2*4)}
	for i := range img.Pixels {
		img.Pixels[i] = byte(i)
	}

	b := marshalDecodedImage(img)
	got, err := unmarshalDecodedImage(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Width != img.Width || got.Height != img.Height {
		t.Fatalf("dimensions mismatch: got %dx%d, want %dx%d", got.Width, got.Height, img.Width, img.Height)
	}
	for i := range img.Pixels {
		if got.Pixels[i] != img.Pixels[i] {
			t.Fatalf("pixel %d mismatch: got %d, want %d", i, got.Pixels[i], img.Pixels[i])
		}
	}
}

func TestUnmarshalDecodedImageRejectsShortPayload(t *testing.T) {
	if _, err := unmarshalDecodedImage([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestUnmarshalDecodedImageRejectsWrongLength(t *testing.T) {
	buf := make([]byte, 8+5) // claims 1x1 (needs 4 bytes) but carries 5
	buf[0] = 1
	buf[4] = 1
	if _, err := unmarshalDecodedImage(buf); err == nil {
		t.Fatal("expected error for mismatched pixel buffer length")
	}
}
