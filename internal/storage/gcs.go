package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSKV stores each key as an object <prefix>/<key>.json in a bucket.
type GCSKV struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	prefix string
}

var _ KV = (*GCSKV)(nil)

// NewGCSKV uses application default credentials unless opts say otherwise.
func NewGCSKV(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSKV, error) {
	if bucket == "" {
		return nil, errors.New("missing GCS bucket")
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSKV{client: client, bucket: client.Bucket(bucket), prefix: prefix}, nil
}

func (g *GCSKV) object(key string) string {
	return path.Join(g.prefix, key+".json")
}

func (g *GCSKV) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(g.object(key)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Put replaces the object. A failed write cancels the upload instead of
// closing the writer, so no partial object is committed.
func (g *GCSKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket.Object(g.object(key)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(value); err != nil {
		cancel()
		return fmt.Errorf("write GCS object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close GCS writer: %w", err)
	}
	return nil
}

func (g *GCSKV) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(g.object(key)).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object: %w", err)
	}
	return nil
}

func (g *GCSKV) Close() error {
	return g.client.Close()
}
