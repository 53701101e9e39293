package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/lecture-pipeline/internal/chain"
	"github.com/MimeLyc/lecture-pipeline/internal/media"
	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
)

type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrNotFound
	ErrValidation
	ErrConflict
	ErrVideoMissing
	ErrTranscription
	ErrStorage
	ErrTimeout
	ErrCanceled
)

type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "NotFound"
	case ErrValidation:
		return "Validation"
	case ErrConflict:
		return "Conflict"
	case ErrVideoMissing:
		return "VideoMissing"
	case ErrTranscription:
		return "Transcription"
	case ErrStorage:
		return "Storage"
	case ErrTimeout:
		return "Timeout"
	case ErrCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(s string) ErrorKind {
	for k := ErrUnknown; k <= ErrCanceled; k++ {
		if k.String() == s {
			return k
		}
	}
	return ErrUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// KindOf classifies err. Typed errors keep their kind; context errors map to
// Timeout/Canceled; exhausted provider chains map to Transcription.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	}
	var exhausted *chain.ExhaustedError
	if errors.As(err, &exhausted) {
		return ErrTranscription
	}
	var extraction *media.ExtractionError
	if errors.As(err, &extraction) {
		return ErrTranscription
	}
	return ErrUnknown
}

// Advice returns an operator hint for a failure kind.
func Advice(kind ErrorKind) string {
	switch kind {
	case ErrVideoMissing:
		return "The uploaded video is no longer in the storage directory; upload it again"
	case ErrTranscription:
		return "No speech provider produced text; check ffmpeg, the whisper server, and the python whisper install"
	case ErrStorage:
		return "Check that the storage directory and database are writable"
	case ErrTimeout:
		return "Processing exceeded PIPELINE_TIMEOUT; retry or raise the timeout for long recordings"
	case ErrCanceled:
		return "Processing was interrupted by shutdown; retry the lecture"
	default:
		return "Review the error details and the service logs"
	}
}

// LogError logs err with its kind and advice.
func LogError(err error) {
	kind := KindOf(err)
	log.Error("%v (advice: %s)", err, Advice(kind))
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	return NewErrorWithCause(kind, message, err)
}

func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
