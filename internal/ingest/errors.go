package ingest

import (
	"context"
	"errors"
	"fmt"

	"media-ingest/internal/media"
	"media-ingest/internal/storage"
	"media-ingest/internal/verify"
)

// Kind classifies where an ingestion failed.
type Kind int

const (
	// KindTransport is a malformed or incomplete upload. Nothing was written.
	KindTransport Kind = iota
	// KindValidation is a rejected upload: type, size or quota. Nothing was written.
	KindValidation
	// KindDecode means the bytes passed type checks but did not decode.
	KindDecode
	// KindEncode means the original could not be encoded.
	KindEncode
	// KindStorage means the storage directory could not be used.
	KindStorage
	// KindPersistence means the manifest could not be committed.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	case KindStorage:
		return "storage"
	case KindPersistence:
		return "persistence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason is a stable machine-readable failure code.
type Reason string

const (
	ReasonMissingFile        Reason = "missing_file"
	ReasonDisallowedType     Reason = "disallowed_type"
	ReasonTooLarge           Reason = "too_large"
	ReasonTypeMismatch       Reason = "type_mismatch"
	ReasonQuotaExceeded      Reason = "quota_exceeded"
	ReasonInvalidSizes       Reason = "invalid_sizes"
	ReasonCorruptImage       Reason = "corrupt_image"
	ReasonStorageUnavailable Reason = "storage_unavailable"
	ReasonInternal           Reason = "internal"
	ReasonCanceled           Reason = "canceled"
)

// User-visible messages. Internal detail such as paths never reaches callers.
const (
	msgMissingFile    = "No file was uploaded."
	msgDisallowedType = "This file type is not allowed. Upload a JPEG, PNG, GIF or WebP image."
	msgTooLarge       = "The file is too large."
	msgQuotaReached   = "You have reached the maximum number of stored images."
	msgInvalidImage   = "The file could not be read as an image."
	msgInvalidSizes   = "The requested image sizes are not valid."
	msgTransient      = "The image could not be stored right now. Please try again."
	msgCanceled       = "The upload was interrupted."
)

// Error is returned by Service.Ingest for every failure.
type Error struct {
	Kind   Kind
	Reason Reason
	Err    error
	// QuotaCeiling is set for ReasonQuotaExceeded.
	QuotaCeiling int
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest %s error: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("ingest %s error: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the fixed message shown to the uploader.
func (e *Error) UserMessage() string {
	switch e.Reason {
	case ReasonMissingFile:
		return msgMissingFile
	case ReasonDisallowedType:
		return msgDisallowedType
	case ReasonTooLarge:
		return msgTooLarge
	case ReasonQuotaExceeded:
		return msgQuotaReached
	case ReasonTypeMismatch, ReasonCorruptImage:
		return msgInvalidImage
	case ReasonInvalidSizes:
		return msgInvalidSizes
	case ReasonCanceled:
		return msgCanceled
	default:
		return msgTransient
	}
}

func newError(kind Kind, reason Reason, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var ie *Error
	ok := errors.As(err, &ie)
	return ie, ok
}

// ReasonOf returns the failure reason for err, or ReasonInternal.
func ReasonOf(err error) Reason {
	if ie, ok := AsError(err); ok {
		return ie.Reason
	}
	return ReasonInternal
}

func classifyVerify(err error) *Error {
	switch {
	case errors.Is(err, verify.ErrEmpty):
		return newError(KindTransport, ReasonMissingFile, err)
	case errors.Is(err, verify.ErrDisallowedType):
		return newError(KindValidation, ReasonDisallowedType, err)
	case errors.Is(err, verify.ErrImageTooLarge):
		return newError(KindValidation, ReasonTooLarge, err)
	default:
		return newError(KindValidation, ReasonTypeMismatch, err)
	}
}

// classifyGenerate maps an error from the rendition generator. Only the
// original step and cancellation can fail a generation run.
func classifyGenerate(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindTransport, ReasonCanceled, err)
	case errors.Is(err, media.ErrCorruptImage), errors.Is(err, media.ErrUnsupportedFormat):
		return newError(KindDecode, ReasonCorruptImage, err)
	case errors.Is(err, media.ErrWriteFailed):
		return newError(KindStorage, ReasonStorageUnavailable, err)
	default:
		return newError(KindEncode, ReasonInternal, err)
	}
}

func classifyLayout(err error) *Error {
	if errors.Is(err, storage.ErrBaseUnavailable) {
		return newError(KindStorage, ReasonStorageUnavailable, err)
	}
	return newError(KindStorage, ReasonInternal, err)
}
