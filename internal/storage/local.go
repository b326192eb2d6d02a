package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/blondeglamazon/message-board-sub000/internal/config"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaDir      = "./data/media"
	DefaultMaxUploadMB   = 10
	MaxImageDimension    = 2048
	WebPQuality          = 80
	imageOutputMIME      = "image/webp"
	imageOutputExtension = ".webp"
)

// Raw media types stored as uploaded, by detected MIME type.
var rawMediaTypes = map[string]struct {
	kind models.PostType
	ext  string
}{
	"video/mp4":       {models.PostTypeVideo, ".mp4"},
	"video/webm":      {models.PostTypeVideo, ".webm"},
	"audio/mpeg":      {models.PostTypeAudio, ".mp3"},
	"audio/wave":      {models.PostTypeAudio, ".wav"},
	"audio/ogg":       {models.PostTypeAudio, ".ogg"},
	"application/ogg": {models.PostTypeAudio, ".ogg"},
}

// LocalStore keeps media on the local filesystem and serves it under a
// public base URL.
type LocalStore struct {
	dir                string
	publicURL          string
	maxUploadSizeBytes int64
}

func NewLocalStore(cfg *config.Config) *LocalStore {
	dir := DefaultMediaDir
	maxUploadMB := DefaultMaxUploadMB
	publicURL := ""
	if cfg != nil {
		if cfg.MediaDir != "" {
			dir = cfg.MediaDir
		}
		if cfg.MediaMaxUploadMB > 0 {
			maxUploadMB = cfg.MediaMaxUploadMB
		}
		publicURL = cfg.MediaPublicURL
	}
	return &LocalStore{
		dir:                dir,
		publicURL:          strings.TrimRight(publicURL, "/"),
		maxUploadSizeBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// Dir is the root directory objects are written under.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload stores the content. Images are normalised to WebP no larger than
// MaxImageDimension on either side; audio and video are stored as-is.
func (s *LocalStore) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := http.DetectContentType(in.Content)
	var obj *Object
	var err error
	if isAllowedImageMIME(detected) {
		obj, err = s.storeImage(in)
	} else if raw, ok := rawMediaTypes[detected]; ok {
		obj, err = s.storeRaw(in, detected, raw.kind, raw.ext)
	} else {
		observability.MediaUploads.WithLabelValues("unknown", "rejected").Inc()
		return nil, models.NewValidationError("Unsupported media type")
	}
	if err != nil {
		kind := "image"
		if obj != nil {
			kind = string(obj.Kind)
		}
		observability.MediaUploads.WithLabelValues(kind, "failed").Inc()
		return nil, err
	}

	observability.MediaUploads.WithLabelValues(string(obj.Kind), "stored").Inc()
	observability.Logger.InfoContext(ctx, "media stored",
		slog.String("key", obj.Key),
		slog.String("kind", string(obj.Kind)),
		slog.Int64("size", obj.Size))
	return obj, nil
}

func (s *LocalStore) storeImage(in UploadInput) (*Object, error) {
	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	master := resizeToFit(decoded, MaxImageDimension, MaxImageDimension)
	encoded, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	key := objectKey(in.OwnerID, encoded, imageOutputExtension)
	if err := writeBytesToFile(filepath.Join(s.dir, filepath.FromSlash(key)), encoded); err != nil {
		return nil, models.NewExternalServiceError("media storage", err)
	}
	b := master.Bounds()
	return &Object{
		Key:         key,
		URL:         s.PublicURL(key),
		Kind:        models.PostTypeImage,
		ContentType: imageOutputMIME,
		Size:        int64(len(encoded)),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func (s *LocalStore) storeRaw(in UploadInput, contentType string, kind models.PostType, ext string) (*Object, error) {
	key := objectKey(in.OwnerID, in.Content, ext)
	if err := writeBytesToFile(filepath.Join(s.dir, filepath.FromSlash(key)), in.Content); err != nil {
		return &Object{Kind: kind}, models.NewExternalServiceError("media storage", err)
	}
	return &Object{
		Key:         key,
		URL:         s.PublicURL(key),
		Kind:        kind,
		ContentType: contentType,
		Size:        int64(len(in.Content)),
	}, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL is where a stored key is served from.
func (s *LocalStore) PublicURL(key string) string {
	return s.publicURL + "/" + key
}

// objectKey is content addressed per owner, so re-uploading the same file
// yields the same key.
func objectKey(ownerID uint, content []byte, ext string) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", ownerID)
	h.Write(content)
	sum := hex.EncodeToString(h.Sum(nil))
	return sum[:2] + "/" + sum + ext
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
