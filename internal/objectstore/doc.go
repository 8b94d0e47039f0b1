// Package objectstore provides the remote object store backends used to read
// feeds, manifests and data files.
//
// Two backends are available: S3Store, built on the AWS SDK v2, and MinioStore,
// built on minio-go for S3 compatible servers. Both map provider errors onto
// the module's sentinel errors so callers can use errors.Is regardless of backend.
package objectstore
