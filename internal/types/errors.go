package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers.
const (
	KindInvalidSegment     = "invalid_segment"
	KindInvalidConfig      = "invalid_config"
	KindHistoryUnavailable = "history_unavailable"
)

// InvalidSegmentError rejects malformed timing or confidence. Fatal.
type InvalidSegmentError struct {
	Index   int
	Message string
}

func (e *InvalidSegmentError) Error() string {
	return fmt.Sprintf("%s: segment %d: %s", KindInvalidSegment, e.Index, e.Message)
}

func (e *InvalidSegmentError) Kind() string { return KindInvalidSegment }

// InvalidConfigError rejects a scoring configuration. Fatal.
type InvalidConfigError struct {
	Field   string
	Message string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", KindInvalidConfig, e.Field, e.Message)
}

func (e *InvalidConfigError) Kind() string { return KindInvalidConfig }

// HistoryUnavailableError wraps a history store failure. Never fatal.
type HistoryUnavailableError struct {
	Op  string // "fetch", "append" or "keys"
	Key string
	Err error
}

func (e *HistoryUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", KindHistoryUnavailable, e.Op, e.Key, e.Err)
}

func (e *HistoryUnavailableError) Unwrap() error { return e.Err }

func (e *HistoryUnavailableError) Kind() string { return KindHistoryUnavailable }

// ErrorKind returns the kind of a structured error, or "" for anything else.
func ErrorKind(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
