package s3

import (
	"context"
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	derrors "github.com/objectfs/s3drive/pkg/errors"
)

// translateError maps an SDK error to a DriverError. Anything not
// recognized becomes a read or write storage error depending on op.
func (b *Backend) translateError(err error, op, key string) error {
	code := classify(err)
	if code == "" {
		code = derrors.ErrCodeStorageRead
		if isWrite(op) {
			code = derrors.ErrCodeStorageWrite
		}
	}

	message := op + " failed"
	switch code {
	case derrors.ErrCodeObjectNotFound:
		message = "object not found: " + key
	case derrors.ErrCodeBucketNotFound:
		message = "bucket not found: " + b.bucket
	case derrors.ErrCodeNetworkError:
		message = op + " timed out"
	}

	return derrors.NewError(code, message).
		WithComponent(component).
		WithOperation(op).
		WithContext("bucket", b.bucket).
		WithContext("key", key).
		WithCause(err)
}

func classify(err error) derrors.ErrorCode {
	switch {
	case errors.Is(err, context.Canceled):
		return derrors.ErrCodeOperationCanceled
	case errors.Is(err, context.DeadlineExceeded):
		// A request that outlives its deadline means the store is not answering.
		return derrors.ErrCodeNetworkError
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		return derrors.ErrCodeObjectNotFound
	case isErrorType[*s3types.NoSuchBucket](err):
		return derrors.ErrCodeBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return derrors.ErrCodeObjectNotFound
		case "NoSuchBucket":
			return derrors.ErrCodeBucketNotFound
		case "AccessDenied", "AllAccessDisabled", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return derrors.ErrCodeAccessDenied
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return derrors.ErrCodeObjectNotFound
		case http.StatusForbidden:
			return derrors.ErrCodeAccessDenied
		}
	}
	return ""
}

func isWrite(op string) bool {
	switch op {
	case "PutObject", "DeleteObject", "CopyObject":
		return true
	}
	return false
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
