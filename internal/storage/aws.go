package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/domain"
)

// S3Bucket stores the downloads in an S3 bucket.
type S3Bucket struct {
	client        *s3.Client
	presign       *s3.PresignClient
	bucket        string
	publicBaseURL string
	presignTTL    time.Duration
	now           func() time.Time
}

// NewS3Bucket loads AWS config (profile or default chain) and creates an
// S3-backed bucket.
func NewS3Bucket(ctx context.Context, cfg config.StorageConfig) (*S3Bucket, error) {
	var awsCfg aws.Config
	var err error

	if profile := cfg.GetAWSProfile(); profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewS3BucketFromClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewS3BucketFromClient wraps an existing client.
func NewS3BucketFromClient(client *s3.Client, cfg config.StorageConfig) *S3Bucket {
	ttl := cfg.PresignTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Bucket{
		client:        client,
		presign:       s3.NewPresignClient(client),
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignTTL:    ttl,
		now:           time.Now,
	}
}

func (b *S3Bucket) List(ctx context.Context) ([]domain.StoredFile, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})

	out := []domain.StoredFile{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !ValidName(key) {
				continue
			}
			out = append(out, domain.StoredFile{
				Name:      key,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (b *S3Bucket) Upload(ctx context.Context, name string, body io.Reader, size int64, contentType string) (domain.StoredFile, error) {
	if !ValidName(name) {
		return domain.StoredFile{}, ErrInvalidName
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(name),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if isPreconditionFailed(err) {
		return domain.StoredFile{}, ErrExists
	}
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("putting object to S3: %w", err)
	}
	return domain.StoredFile{
		Name:        name,
		Size:        size,
		ContentType: contentType,
		CreatedAt:   b.now(),
	}, nil
}

func (b *S3Bucket) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	// DeleteObject succeeds on missing keys, so check first.
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("head S3 object: %w", err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("deleting S3 object: %w", err)
	}
	return nil
}

// PublicURL returns public_base_url/name when a public base is configured,
// otherwise a presigned GET valid for the presign TTL.
func (b *S3Bucket) PublicURL(ctx context.Context, name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	if b.publicBaseURL != "" {
		return b.publicBaseURL + "/" + url.PathEscape(name), nil
	}
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(b.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presigning S3 object: %w", err)
	}
	return req.URL, nil
}

func (b *S3Bucket) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == 404
}

// isPreconditionFailed reports a conditional PUT rejected because the key exists.
func isPreconditionFailed(err error) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusPreconditionFailed
}
