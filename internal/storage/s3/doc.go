/*
Package s3 implements types.Backend on an AWS S3 bucket, or any service
speaking the S3 API, with aws-sdk-go-v2.

# Configuration

	cfg := s3.NewDefaultConfig()
	cfg.Region = "eu-west-1"
	cfg.Endpoint = "http://localhost:9000" // MinIO, LocalStack
	cfg.ForcePathStyle = true

	backend, err := s3.NewBackend(ctx, "media", cfg)

Static credentials in the configuration take precedence over the default
AWS credential chain. NewBackend checks that the bucket is reachable with
HeadBucket before returning.

# Requests

Every request takes a slot from a ConnectionPool sized by PoolSize and is
bounded by RequestTimeout. ListObjects follows continuation tokens, so a
listing is never cut at the 1000 keys of a single page unless MaxKeys asks
for fewer.

SDK errors are translated to DriverError codes: OBJECT_NOT_FOUND for
NoSuchKey and 404 responses, BUCKET_NOT_FOUND, ACCESS_DENIED, and
STORAGE_READ or STORAGE_WRITE for anything else. ObjectExists reports a
missing object as false without an error.

# CargoShip

With EnableCargoShipOptimization, objects of 32 MiB and more are uploaded
through a CargoShip transporter. A failed transporter upload falls back to
a plain PutObject and is counted in BackendMetrics.Fallbacks.
*/
package s3
