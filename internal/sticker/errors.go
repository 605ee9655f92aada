package sticker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAdmissionDenied   = errors.New("admission denied")
	ErrMetadataFetch     = errors.New("fetch file metadata failed")
	ErrDownload          = errors.New("download failed")
	ErrLocalRead         = errors.New("local read failed")
	ErrDecode            = errors.New("decode image failed")
	ErrEncode            = errors.New("encode png failed")
	ErrTranscode         = errors.New("transcode video failed")
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrArchive           = errors.New("build archive failed")
	ErrStateStore        = errors.New("state store failure")
	ErrInvalidRequest    = errors.New("invalid request")
)

// AssetError is a failed export of a single asset.
// It matches both its Kind sentinel and the underlying cause with errors.Is.
type AssetError struct {
	Ref  AssetRef
	Kind error
	Err  error
}

// NewAssetError wraps err as a failure of kind for ref.
func NewAssetError(ref AssetRef, kind, err error) *AssetError {
	return &AssetError{Ref: ref, Kind: kind, Err: err}
}

func (e *AssetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sticker %s: %v", e.Ref.UniqueID, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("sticker %s: %v", e.Ref.UniqueID, e.Err)
	}
	return fmt.Sprintf("sticker %s: %v: %v", e.Ref.UniqueID, e.Kind, e.Err)
}

func (e *AssetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UnsupportedFormatError carries the detected MIME of an asset that cannot be converted.
type UnsupportedFormatError struct {
	MIME string
}

func (e *UnsupportedFormatError) Error() string {
	if e.MIME == "" {
		return ErrUnsupportedFormat.Error()
	}
	return fmt.Sprintf("%v: %s", ErrUnsupportedFormat, e.MIME)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// TranscodeError carries the diagnostic output of a failed transcoder run.
type TranscodeError struct {
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%v: %v", ErrTranscode, e.Err)
	}
	return fmt.Sprintf("%v: %v (output: %s)", ErrTranscode, e.Err, e.Output)
}

func (e *TranscodeError) Is(target error) bool {
	return target == ErrTranscode
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// UserMessage renders err as the single explanation shown to the user.
func UserMessage(err error) string {
	var unsupported *UnsupportedFormatError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		if unsupported.MIME == "" {
			return "Failed to infer the file type."
		}
		return "Unsupported file type: " + unsupported.MIME
	case errors.Is(err, ErrAdmissionDenied):
		return "Too many requests, please slow down and try again in a minute."
	case errors.Is(err, ErrMetadataFetch):
		return "Failed to get the sticker file from Telegram, please try again."
	case errors.Is(err, ErrDownload), errors.Is(err, ErrLocalRead):
		return "Failed to download the sticker file, please try again."
	case errors.Is(err, ErrDecode):
		return "Failed to decode the sticker image."
	case errors.Is(err, ErrEncode):
		return "Failed to convert the sticker to PNG."
	case errors.Is(err, ErrTranscode):
		return "Failed to convert the video sticker to GIF."
	case errors.Is(err, ErrArchive):
		return "Failed to build the sticker pack archive."
	case errors.Is(err, ErrStateStore):
		return "Failed to get state, state manager error: " + err.Error()
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request: " + strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": ")
	default:
		return "Something went wrong, please try again later."
	}
}
