package v1

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/media"
)

const mib = 1 << 20

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// noisyPNG returns a PNG of roughly 4 MiB; random pixels do not compress.
func noisyPNG(t *testing.T) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewNRGBA(image.Rect(0, 0, 1024, 1024))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Uint32())
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func upload(data []byte, contentType string) *PhotoUpload {
	return &PhotoUpload{
		Filename:    "avatar.png",
		ContentType: contentType,
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	}
}

func photoFiles(t *testing.T, storage *media.Storage) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(storage.Root(), media.PhotoDir))
	if err != nil {
		t.Fatalf("read media dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, media.PhotoDir+"/"+e.Name())
	}
	return names
}

func TestUploadPhotoRejects(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	storage := openTempMedia(t)
	svc := NewPhotoService(store, storage, 5*mib, 2048, zap.NewNop())
	user := createUser(t, store, "ivy", "pw")

	oversized := make([]byte, 6*mib)
	tests := []struct {
		name   string
		upload *PhotoUpload
		want   string
	}{
		{name: "no file", upload: nil, want: msgPhotoMissing},
		{name: "six mebibytes", upload: upload(oversized, "image/png"), want: "La imagen es muy grande. Máximo 5MB permitido."},
		{
			name:   "declared size lies",
			upload: &PhotoUpload{ContentType: "image/png", Size: 10, Content: bytes.NewReader(oversized)},
			want:   "La imagen es muy grande. Máximo 5MB permitido.",
		},
		{name: "pdf", upload: upload(smallPNG(t), "application/pdf"), want: msgPhotoBadType},
		{name: "webp", upload: upload(smallPNG(t), "image/webp"), want: msgPhotoBadType},
		{name: "not an image", upload: upload([]byte("hello"), "image/jpeg"), want: msgPhotoNotAnImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadPhoto(context.Background(), user.ID, tt.upload)
			got := validationFields(t, err)
			want := map[string][]string{PhotoField: {tt.want}}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("fields = %v, want %v", got, want)
			}
		})
	}

	if files := photoFiles(t, storage); len(files) != 0 {
		t.Fatalf("rejected uploads left files: %v", files)
	}
}

func TestUploadPhotoWithoutProfile(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	svc := NewPhotoService(store, openTempMedia(t), 5*mib, 2048, zap.NewNop())
	jack := insertBareIdentity(t, store, "jack", "pw", true)

	_, err := svc.UploadPhoto(context.Background(), jack.ID, upload(smallPNG(t), "image/png"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetProfile(context.Background(), jack.ID); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatal("upload must not create a profile")
	}
}

func TestUploadPhotoReplacesPrevious(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	storage := openTempMedia(t)
	svc := NewPhotoService(store, storage, 5*mib, 2048, zap.NewNop())
	user := createUser(t, store, "kate", "pw")
	ctx := context.Background()

	big := noisyPNG(t)
	if len(big) < 4*mib || len(big) > 5*mib {
		t.Fatalf("fixture is %d bytes, want about 4 MiB", len(big))
	}

	first, err := svc.UploadPhoto(ctx, user.ID, upload(big, "image/png"))
	if err != nil {
		t.Fatalf("4 MiB PNG upload: %v", err)
	}
	if first.Photo == nil || !strings.HasPrefix(*first.Photo, media.PhotoDir+"/") || !strings.HasSuffix(*first.Photo, ".png") {
		t.Fatalf("foto = %v", first.Photo)
	}
	if first.PhotoURL == nil || *first.PhotoURL != "/media/"+*first.Photo {
		t.Fatalf("foto_url = %v", first.PhotoURL)
	}

	second, err := svc.UploadPhoto(ctx, user.ID, upload(smallPNG(t), "image/png"))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if *second.Photo == *first.Photo {
		t.Fatal("second upload reused the file name")
	}

	files := photoFiles(t, storage)
	if len(files) != 1 || files[0] != *second.Photo {
		t.Fatalf("files on disk = %v, want only %s", files, *second.Photo)
	}
}

func TestUploadPhotoOldFileDeleteFailureIsLogged(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	storage := openTempMedia(t)
	logger, logs := observedLogger()
	svc := NewPhotoService(store, stubbornPhotos{storage}, 5*mib, 2048, logger)
	user := createUser(t, store, "liam", "pw")
	ctx := context.Background()

	first, err := svc.UploadPhoto(ctx, user.ID, upload(smallPNG(t), "image/png"))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := svc.UploadPhoto(ctx, user.ID, upload(smallPNG(t), "image/png"))
	if err != nil {
		t.Fatalf("delete failure must not fail the upload: %v", err)
	}
	if *second.Photo == *first.Photo {
		t.Fatal("photo reference not replaced")
	}

	warnings := logs.FilterMessage("Failed to delete previous photo").All()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}
	if got := warnings[0].ContextMap()["photo"]; got != *first.Photo {
		t.Fatalf("logged photo = %v, want %s", got, *first.Photo)
	}
}

func TestUploadPhotoPersistFailureRemovesNewFile(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	storage := openTempMedia(t)
	user := createUser(t, store, "mia", "pw")
	boom := errors.New("connection reset")
	svc := NewPhotoService(&faultyStore{Store: store, err: boom}, storage, 5*mib, 2048, zap.NewNop())

	_, err := svc.UploadPhoto(context.Background(), user.ID, upload(smallPNG(t), "image/png"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if files := photoFiles(t, storage); len(files) != 0 {
		t.Fatalf("orphaned files left behind: %v", files)
	}

	record, err := store.GetProfile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Profile.Photo != nil {
		t.Fatal("photo reference persisted despite failure")
	}
}

func TestUploadPhotoDownscales(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	storage := openTempMedia(t)
	svc := NewPhotoService(store, storage, 5*mib, 64, zap.NewNop())
	user := createUser(t, store, "noah", "pw")

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 256, 128))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	view, err := svc.UploadPhoto(context.Background(), user.ID, upload(buf.Bytes(), "image/png"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(storage.Root(), filepath.FromSlash(*view.Photo)))
	if err != nil {
		t.Fatalf("read stored: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Fatalf("stored size = %dx%d, want 64x32", cfg.Width, cfg.Height)
	}
}
