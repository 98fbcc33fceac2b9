package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/duynhne/profile-service/config"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	palette := color.Palette{color.Black, color.White}
	if err := gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, w, h), palette), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       []byte
		maxDim     int
		wantFormat string
		wantExt    string
		wantW      int
		wantH      int
		wantScaled bool
	}{
		{name: "small png kept", data: encodePNG(t, 40, 20), maxDim: 100, wantFormat: "png", wantExt: ".png", wantW: 40, wantH: 20},
		{name: "wide png scaled", data: encodePNG(t, 400, 100), maxDim: 100, wantFormat: "png", wantExt: ".png", wantW: 100, wantH: 25, wantScaled: true},
		{name: "tall jpeg scaled", data: encodeJPEG(t, 50, 200), maxDim: 100, wantFormat: "jpeg", wantExt: ".jpg", wantW: 25, wantH: 100, wantScaled: true},
		{name: "scaling disabled", data: encodeJPEG(t, 300, 300), maxDim: 0, wantFormat: "jpeg", wantExt: ".jpg", wantW: 300, wantH: 300},
		{name: "gif never scaled", data: encodeGIF(t, 300, 300), maxDim: 100, wantFormat: "gif", wantExt: ".gif", wantW: 300, wantH: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prepare(tt.data, tt.maxDim)
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			if got.Format != tt.wantFormat || got.Ext() != tt.wantExt {
				t.Fatalf("format = %s (%s), want %s (%s)", got.Format, got.Ext(), tt.wantFormat, tt.wantExt)
			}
			if got.Width != tt.wantW || got.Height != tt.wantH || got.Scaled != tt.wantScaled {
				t.Fatalf("size = %dx%d scaled=%v, want %dx%d scaled=%v",
					got.Width, got.Height, got.Scaled, tt.wantW, tt.wantH, tt.wantScaled)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(got.Data))
			if err != nil {
				t.Fatalf("output does not decode: %v", err)
			}
			if format != tt.wantFormat || cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Fatalf("encoded output = %s %dx%d", format, cfg.Width, cfg.Height)
			}
		})
	}
}

func TestPrepareRejectsNonImages(t *testing.T) {
	t.Parallel()

	pngData := encodePNG(t, 10, 10)
	for name, data := range map[string][]byte{
		"text":      []byte("definitely not an image"),
		"empty":     nil,
		"truncated": pngData[:len(pngData)/2],
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Prepare(data, 100); !errors.Is(err, ErrUnsupportedImage) {
				t.Fatalf("err = %v, want ErrUnsupportedImage", err)
			}
		})
	}
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(config.MediaConfig{Root: t.TempDir(), URLPrefix: "/media"})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s
}

func TestStorageSaveAndDelete(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	name, err := s.SavePhoto(ctx, []byte("photo-bytes"), ".png")
	if err != nil {
		t.Fatalf("SavePhoto: %v", err)
	}
	if !strings.HasPrefix(name, PhotoDir+"/") || !strings.HasSuffix(name, ".png") {
		t.Fatalf("name = %q", name)
	}
	// 32 hex characters of uuid plus the extension
	if base := strings.TrimSuffix(strings.TrimPrefix(name, PhotoDir+"/"), ".png"); len(base) != 32 {
		t.Fatalf("base name %q is not a bare uuid", base)
	}

	got, err := os.ReadFile(filepath.Join(s.Root(), filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(got) != "photo-bytes" {
		t.Fatalf("stored = %q", got)
	}

	other, err := s.SavePhoto(ctx, []byte("x"), ".png")
	if err != nil {
		t.Fatalf("SavePhoto: %v", err)
	}
	if other == name {
		t.Fatal("two saves produced the same name")
	}

	if err := s.Delete(ctx, name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), filepath.FromSlash(name))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
	if err := s.Delete(ctx, name); err != nil {
		t.Fatalf("deleting a missing file: %v", err)
	}
}

func TestStorageRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	for _, name := range []string{"../secret", "/etc/passwd", "perfiles/../../x", ""} {
		if err := s.Delete(context.Background(), name); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("Delete(%q) err = %v, want ErrUnsafePath", name, err)
		}
	}
}

func TestStorageURL(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	if got := s.URL("perfiles/abc.jpg"); got != "/media/perfiles/abc.jpg" {
		t.Fatalf("URL = %q", got)
	}
}
