package imagegen

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

func TestProbeImage(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewRGBA(image.Rect(0, 0, 5, 7)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	tests := []struct {
		name   string
		data   []byte
		format string
		width  int
		height int
	}{
		{"png", testPNG(t, 10, 20), "png", 10, 20},
		{"jpeg", jpg.Bytes(), "jpeg", 5, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ProbeImage(tt.data)
			if err != nil {
				t.Fatalf("ProbeImage: %v", err)
			}
			if info.Format != tt.format || info.Width != tt.width || info.Height != tt.height {
				t.Errorf("got %+v", info)
			}
			if info.MimeType != "image/"+tt.format {
				t.Errorf("MimeType = %s", info.MimeType)
			}
		})
	}
}

func TestProbeImage_Invalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("definitely not an image")} {
		if _, err := ProbeImage(data); !errors.Is(err, ErrInvalidImageRef) {
			t.Errorf("ProbeImage(%q): expected ErrInvalidImageRef, got %v", data, err)
		}
	}
}

func TestImageInfo_String(t *testing.T) {
	info := &ImageInfo{Format: "webp", Width: 4096, Height: 2304}
	if got := info.String(); got != "webp 4096x2304" {
		t.Errorf("String() = %q", got)
	}
}
