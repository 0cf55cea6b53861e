// Package modelstore reads and writes model documents from local paths or
// s3://bucket/key locations.
package modelstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// ErrNotFound is returned when a model location does not exist.
var ErrNotFound = errors.New("model not found")

// ObjectAPI is the subset of the S3 client used by the store.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures access to s3:// locations.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Store loads and saves model documents.
type Store struct {
	opts Options

	mu     sync.Mutex
	client ObjectAPI
}

// New creates a store. The S3 client is created on first use of an s3:// location.
func New(opts Options) *Store {
	return &Store{opts: opts}
}

// NewWithClient creates a store that uses client for s3:// locations.
func NewWithClient(client ObjectAPI) *Store {
	return &Store{client: client}
}

// IsRemote reports whether location is an s3:// URI.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// Load reads and parses the model document at location.
func (s *Store) Load(ctx context.Context, location string) (*tabular.Database, error) {
	data, err := s.Read(ctx, location)
	if err != nil {
		return nil, err
	}
	db, err := tabular.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return db, nil
}

// Save serializes db to location.
func (s *Store) Save(ctx context.Context, location string, db *tabular.Database) error {
	var buf bytes.Buffer
	if err := tabular.Encode(&buf, db); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return s.Write(ctx, location, buf.Bytes())
}

// Read returns the raw bytes at location. A missing file or object wraps ErrNotFound.
func (s *Store) Read(ctx context.Context, location string) ([]byte, error) {
	if !IsRemote(location) {
		data, err := os.ReadFile(location) //nolint:gosec // user-supplied model path
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", location, err)
		}
		return data, nil
	}

	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("failed to get %s: %w", location, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return data, nil
}

// Write stores data at location, creating parent directories for local paths.
func (s *Store) Write(ctx context.Context, location string, data []byte) error {
	if !IsRemote(location) {
		if dir := filepath.Dir(location); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(location, data, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", location, err)
		}
		return nil
	}

	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return err
	}
	client, err := s.s3Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", location, err)
	}
	return nil
}

func (s *Store) s3Client(ctx context.Context) (ObjectAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if s.opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.opts.Region))
	}
	if s.opts.AccessKeyID != "" && s.opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.opts.AccessKeyID, s.opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.Endpoint)
		}
		o.UsePathStyle = s.opts.PathStyle
	})
	return s.client, nil
}

// ParseS3URI extracts bucket and key from an "s3://bucket/path/to/model.bim" URI.
func ParseS3URI(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 location %q: %w", location, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3:// scheme, got %q in %q", u.Scheme, location)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("S3 location %q needs a bucket and a key", location)
	}
	return bucket, key, nil
}
