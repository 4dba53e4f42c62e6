package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/lexgo/blobstore"
)

// Store implements blobstore.BlobStore on a MinIO bucket. All blob
// names are placed under the configured root prefix, so several
// indexes can share one bucket.
type Store struct {
	client *minio.Client
	bucket string
	root   string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore creates a blob store over bucket, rooted at rootPrefix
// (e.g. "indexes/articles").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, root: rootPrefix}
}

func (s *Store) objectKey(name string) string {
	return path.Join(s.root, name)
}

// isMissing reports whether err means the object does not exist.
func isMissing(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open opens an existing blob for range reads.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.objectKey(name)
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMissing(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &objectBlob{store: s, key: key, size: stat.Size}, nil
}

// Create buffers writes in memory and uploads the object on Close.
// Object puts are atomic, so a crash mid-upload publishes nothing.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return &objectWriter{ctx: ctx, store: s, key: s.objectKey(name)}, nil
}

// Put uploads a small blob in one call.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Delete removes a blob. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{})
	if err != nil && !isMissing(err) {
		return err
	}
	return nil
}

// List returns all blob names under the root with the prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    s.objectKey(prefix),
		Recursive: true,
	}
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.root), "/")
		if rel != "" {
			names = append(names, rel)
		}
	}
	sort.Strings(names)
	return names, nil
}

// objectBlob serves ReadAt through ranged GETs.
type objectBlob struct {
	store *Store
	key   string
	size  int64
}

func (b *objectBlob) Size() int64 { return b.size }

func (b *objectBlob) Close() error { return nil }

func (b *objectBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	if rest := b.size - off; want > rest {
		want = rest
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, off+want-1); err != nil {
		return 0, err
	}
	obj, err := b.store.client.GetObject(ctx, b.store.bucket, b.key, opts)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:want])
	if err != nil {
		return n, fmt.Errorf("range read %s at %d: %w", b.key, off, err)
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// objectWriter accumulates the blob and performs a single atomic
// upload when closed. Sync is a no-op; durability is the upload.
type objectWriter struct {
	ctx   context.Context
	store *Store
	key   string
	buf   bytes.Buffer
	done  bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Sync() error { return nil }

func (w *objectWriter) Close() error {
	if w.done {
		return io.ErrClosedPipe
	}
	w.done = true
	_, err := w.store.client.PutObject(w.ctx, w.store.bucket, w.key,
		bytes.NewReader(w.buf.Bytes()), int64(w.buf.Len()), minio.PutObjectOptions{})
	return err
}
