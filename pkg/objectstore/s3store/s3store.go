// Package s3store implements objectstore.Store on Amazon S3 and S3-compatible
// endpoints such as LocalStack.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
)

const provider = "s3"

// Config holds S3 connection settings.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint overrides the AWS endpoint and switches to path-style addressing.
	Endpoint string
}

// Store is an S3-backed objectstore.Store.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	logger   zerolog.Logger
}

// New validates cfg and creates an S3 client with static credentials.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var missing []string
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if cfg.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if cfg.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("s3: missing required settings: %s", strings.Join(missing, ", "))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		logger:   logger.With().Str("component", "s3store").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// Upload streams the local file to folder/<basename>.
func (s *Store) Upload(ctx context.Context, localPath, folder string) (string, error) {
	f, err := objectstore.OpenLocal(provider, localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := objectstore.Key(folder, localPath)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}

	s.logger.Debug().Str("key", key).Msg("Object uploaded")
	return key, nil
}

// Download reads the whole object.
func (s *Store) Download(ctx context.Context, key, localPath string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, Classify)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, nil)
	}
	if err := objectstore.SaveLocal(provider, key, localPath, data); err != nil {
		return nil, err
	}
	return data, nil
}

// List pages through every object under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []objectstore.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, objectstore.Wrap(provider, "list", prefix, err, Classify)
		}
		for _, obj := range page.Contents {
			objects = append(objects, objectstore.Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}
	return objects, nil
}

// Classify maps S3 error codes and HTTP statuses to object store error kinds.
func Classify(err error) error {
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return objectstore.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return objectstore.ErrNotFound
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessDenied", "ExpiredToken", "InvalidToken":
			return objectstore.ErrAuth
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return objectstore.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return objectstore.ErrAuth
		}
	}
	return objectstore.ErrOperationFailed
}
