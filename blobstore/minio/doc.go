// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible object store via the MinIO Go client.
//
// Segments are immutable once published, so the store only needs
// PutObject, ranged GetObject, RemoveObject and ListObjects.
package minio
