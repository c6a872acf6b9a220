package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/habedi/microfeed/pkg/hasher"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MaxImageSize is the largest image accepted for upload.
const MaxImageSize = 10 << 20

// DefaultLinkExpiry is how long presigned image links stay valid.
const DefaultLinkExpiry = 7 * 24 * time.Hour

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type objectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error)
}

// Uploader stores post images in a bucket under content-addressed keys,
// so uploading the same file twice yields the same object.
type Uploader struct {
	store  objectStore
	bucket string
	expiry time.Duration
}

// NewUploader connects to the object store and makes sure the bucket exists.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("media storage is not configured")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Uploader{store: mc, bucket: cfg.Bucket, expiry: DefaultLinkExpiry}, nil
}

// ObjectKey builds the key for an image with the given digest and file name.
func ObjectKey(sum, name string) string {
	return "posts/" + sum + strings.ToLower(filepath.Ext(name))
}

// ContentType guesses the MIME type from the file extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// CheckImage rejects files the feed does not accept as images.
func CheckImage(name string, size int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported image type %q", ext)
	}
	if size <= 0 {
		return fmt.Errorf("image %s is empty", filepath.Base(name))
	}
	if size > MaxImageSize {
		return fmt.Errorf("image %s is larger than %d bytes", filepath.Base(name), MaxImageSize)
	}
	return nil
}

// UploadFile uploads the image at path and returns a link to it.
func (u *Uploader) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return u.Upload(ctx, filepath.Base(path), f, info.Size())
}

// Upload hashes r, rewinds it, and stores it under its digest.
func (u *Uploader) Upload(ctx context.Context, name string, r io.ReadSeeker, size int64) (string, error) {
	if err := CheckImage(name, size); err != nil {
		return "", err
	}
	sum, _, err := hasher.HashReader(r, "sha256")
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", name, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	key := ObjectKey(sum, name)
	if _, err := u.store.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{ContentType: ContentType(name)}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	link, err := u.store.PresignedGetObject(ctx, u.bucket, key, u.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int64("size", size).Msg("Uploaded image")
	return link.String(), nil
}
