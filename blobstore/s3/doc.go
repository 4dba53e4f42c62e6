// Package s3 provides a blobstore.BlobStore backed by Amazon S3 using
// the AWS SDK v2. Reads use ranged GETs; writes stream through the
// s3/manager multipart uploader.
package s3
