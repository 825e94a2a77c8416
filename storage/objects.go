// Package storage keeps floor-plan images and archived receipts in an S3 compatible
// bucket served through a CDN domain.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nfnt/resize"
)

const (
	maxFileSize    = 10 * 1024 * 1024
	planWidth      = 1600
	previewSize    = 300
	planQuality    = 85
	previewQuality = 75
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	CDNDomain string
	Secure    bool
}

type ObjectStore struct {
	client *minio.Client
	bucket string
	cdn    string
	Now    func() time.Time
}

func New(cfg Config) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	cdn := cfg.CDNDomain
	if cdn == "" {
		cdn = cfg.Endpoint + "/" + cfg.Bucket
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, cdn: cdn, Now: time.Now}, nil
}

// PutDocument uploads data under key and returns its public url.
func (s *ObjectStore) PutDocument(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

// UploadFloorPlan stores a resized floor-plan image of an area and its preview and
// returns both urls.
func (s *ObjectStore) UploadFloorPlan(ctx context.Context, area string, file *multipart.FileHeader) (string, string, error) {
	if file.Size > maxFileSize {
		return "", "", fmt.Errorf("file size exceeds the 10MB limit")
	}
	src, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", "", fmt.Errorf("failed to read image data: %w", err)
	}
	plan, preview, err := PrepareFloorPlan(data, file.Header.Get("Content-Type"))
	if err != nil {
		return "", "", err
	}

	base := fmt.Sprintf("plantas/%s_%d", area, s.Now().Unix())
	mainURL, err := s.PutDocument(ctx, base+".jpg", "image/jpeg", plan)
	if err != nil {
		return "", "", err
	}
	previewURL, err := s.PutDocument(ctx, base+"_preview.jpg", "image/jpeg", preview)
	if err != nil {
		return "", "", err
	}
	return mainURL, previewURL, nil
}

func (s *ObjectStore) URL(key string) string {
	return fmt.Sprintf("https://%s/%s", s.cdn, key)
}

// PrepareFloorPlan decodes a jpeg or png image and returns it as jpeg scaled down to
// the plan width (never up) plus a thumbnail preview.
func PrepareFloorPlan(data []byte, contentType string) ([]byte, []byte, error) {
	var (
		img image.Image
		err error
	)
	switch contentType {
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	default:
		return nil, nil, fmt.Errorf("unsupported file format: %s", contentType)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}

	scaled := img
	if img.Bounds().Dx() > planWidth {
		scaled = resize.Resize(planWidth, 0, img, resize.Lanczos3)
	}
	var bufMain bytes.Buffer
	if err := jpeg.Encode(&bufMain, scaled, &jpeg.Options{Quality: planQuality}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	thumb := resize.Thumbnail(previewSize, previewSize, img, resize.Lanczos3)
	var bufPreview bytes.Buffer
	if err := jpeg.Encode(&bufPreview, thumb, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode preview image: %w", err)
	}
	return bufMain.Bytes(), bufPreview.Bytes(), nil
}
