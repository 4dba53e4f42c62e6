// Package blobstore abstracts the byte storage backing a lexgo index.
//
// A BlobStore holds named immutable blobs: sealed segments, deletion
// sidecars and manifest files. The engine only needs random-access reads
// and publish-on-close writes, so backends range from an in-memory map
// (testing) over mmap-backed local files (default) to S3-compatible
// object stores (see the minio and s3 subpackages).
package blobstore
