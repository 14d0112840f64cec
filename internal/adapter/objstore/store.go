// Package objstore reads inputs from and writes outputs to an S3-compatible
// object store.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/couchcryptid/flight-recon/internal/config"
	"github.com/couchcryptid/flight-recon/internal/ingest"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is a MinIO client bound to an output bucket and key prefix.
// It implements ingest.Opener and report.Target.
type Store struct {
	client *minio.Client
	region string
	bucket string
	prefix string
}

// New creates a client for the configured endpoint. No request is made.
func New(cfg config.ObjectStoreConfig) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = useSSL || u.Scheme == "https"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, region: cfg.Region, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// WithPrefix returns a view of the store whose keys are nested under sub.
func (s *Store) WithPrefix(sub string) *Store {
	cp := *s
	cp.prefix = path.Join(s.prefix, sub)
	return &cp
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, ingest.RemotePrefix)
	if !ok {
		return "", "", fmt.Errorf("not an object URI: %s", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object URI needs bucket and key: %s", uri)
	}
	return bucket, key, nil
}

// Open fetches an s3:// object. The object's last-modified time stands in for
// the file modification time.
func (s *Store) Open(ctx context.Context, uri string) (*ingest.File, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", uri, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stat object %s: %w", uri, err)
	}
	return &ingest.File{Body: obj, ModTime: info.LastModified}, nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Location returns the s3:// URI an artifact is written to.
func (s *Store) Location(name string) string {
	return ingest.RemotePrefix + s.bucket + "/" + s.key(name)
}

// Put uploads data, replacing any existing object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if s.bucket == "" {
		return errors.New("object store bucket is not configured")
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", s.Location(name), err)
	}
	return nil
}

// EnsureBucket creates the output bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
