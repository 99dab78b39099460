package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bookboard-app/bookboard/internal/model"
)

// S3Config holds the connection settings for an S3-compatible object store.
// Endpoint and the static credentials support MinIO; leave Endpoint empty for
// AWS proper.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	// PublicBaseURL prefixes object keys to form the URL stored in remote
	// image references, e.g. "https://cdn.example.com".
	PublicBaseURL string `yaml:"public_base_url"`
}

// S3Store uploads images to an S3-compatible bucket and returns remote
// references pointing at their public URLs.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store connects to the configured bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the image in the bucket and returns a remote reference with
// its public URL.
func (s *S3Store) Upload(ctx context.Context, ext string, r io.Reader) (model.ImageRef, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxImageSize+1))
	if err != nil {
		return model.ImageRef{}, fmt.Errorf("reading image: %w", err)
	}
	if n > maxImageSize {
		return model.ImageRef{}, ErrTooLarge
	}

	key := storageKey(ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentTypeFor(ext)),
	})
	if err != nil {
		return model.ImageRef{}, fmt.Errorf("uploading image %q: %w", key, err)
	}

	return model.RemoteImage(s.baseURL + "/" + key), nil
}

// Delete removes the referenced object from the bucket. References outside
// this store's public base URL are ignored.
func (s *S3Store) Delete(ctx context.Context, ref model.ImageRef) error {
	if ref.Kind != model.ImageRemoteURL {
		return nil
	}
	key, ok := strings.CutPrefix(ref.Value, s.baseURL+"/")
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting image %q: %w", key, err)
	}
	return nil
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
