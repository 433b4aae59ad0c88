package media

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/indieinfra/inkwell/config"
	storeutil "github.com/indieinfra/inkwell/store/util"
)

// s3Client is the slice of the minio API the store uses; tests swap it out.
type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var newMinioClient = func(endpoint string, opts *minio.Options) (s3Client, error) {
	return minio.New(endpoint, opts)
}

// S3Store uploads media to S3 or any compatible service (R2, Backblaze,
// MinIO).
type S3Store struct {
	client     s3Client
	bucket     string
	publicBase string
}

func NewS3Store(cfg *config.S3MediaStrategy) (*S3Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 media config is nil")
	}

	region := strings.TrimSpace(cfg.Region)
	if strings.EqualFold(region, "auto") {
		region = ""
	}

	endpointHost := strings.TrimSpace(cfg.Endpoint)
	if endpointHost == "" {
		if region == "" {
			endpointHost = "s3.amazonaws.com"
		} else {
			endpointHost = fmt.Sprintf("s3.%s.amazonaws.com", region)
		}
	} else {
		if parsed, err := url.Parse(endpointHost); err == nil && parsed.Host != "" {
			endpointHost = parsed.Host
		}
	}

	client, err := newMinioClient(endpointHost, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyId, cfg.SecretKeyId, ""),
		Secure:       true,
		Region:       region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to verify s3 bucket %q: %w", cfg.Bucket, err)
	}

	if !exists {
		return nil, fmt.Errorf("s3 bucket %q does not exist or is not accessible", cfg.Bucket)
	}

	return &S3Store{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: storeutil.NormalizeBaseURL(cfg.PublicBaseUrl),
	}, nil
}

func (ms *S3Store) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	if file == nil || header == nil {
		return "", fmt.Errorf("file and header are required")
	}

	key, err := storeutil.DefaultMediaPattern().Generate(baseName(header), time.Now(), extensionFor(header))
	if err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{ContentType: header.Header.Get("Content-Type")}

	if _, err := ms.client.PutObject(ctx, ms.bucket, key, file, header.Size, opts); err != nil {
		return "", fmt.Errorf("upload to s3 failed: %w", err)
	}

	return ms.publicBase + key, nil
}

func (ms *S3Store) Delete(ctx context.Context, urlStr string) error {
	key, ok := strings.CutPrefix(urlStr, ms.publicBase)
	if !ok {
		return fmt.Errorf("url does not belong to this media store")
	}

	if err := ms.client.RemoveObject(ctx, ms.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete from s3 failed: %w", err)
	}

	return nil
}
