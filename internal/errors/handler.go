package errors

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrorType classifies the fatal/warning taxonomy the sieve engine can raise.
type ErrorType string

const (
	// ErrorTypeInit covers prime table or primorial construction failures.
	ErrorTypeInit ErrorType = "init"
	// ErrorTypeCapacityOverflow covers a segment bucket overflowing its
	// entriesPerSegment estimate.
	ErrorTypeCapacityOverflow ErrorType = "capacity_overflow"
	// ErrorTypeAssertion covers an out-of-range sieve position or an
	// impossible candidate count from the bitmap scan.
	ErrorTypeAssertion ErrorType = "assertion"
	// ErrorTypeTransientScan covers a Fermat false positive on a submitted
	// tuple; not fatal, the submission layer double-checks server-side.
	ErrorTypeTransientScan ErrorType = "transient_scan"
)

// ErrorSeverity represents the severity of an error.
type ErrorSeverity string

const (
	SeverityWarning ErrorSeverity = "warning"
	SeverityFatal   ErrorSeverity = "fatal"
)

// AppError represents an application error carrying enough context for a
// fatal-error diagnostic to identify the offending segment, word, or index
// without the caller needing to pack a formatted string by hand.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	wrapped   error
}

func (e *AppError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.wrapped
}

// NewError creates a new AppError of the given type and severity.
func NewError(errType ErrorType, severity ErrorSeverity, message string) *AppError {
	return &AppError{
		Type:      errType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WithError wraps an existing error as the cause.
func (e *AppError) WithError(err error) *AppError {
	e.wrapped = err
	return e
}

// WithContext attaches a diagnostic field.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// Handler logs AppErrors at the severity-appropriate level and tracks
// occurrence counts per type. Fatal errors propagate to the caller for
// process termination; the handler itself never retries, matching the
// no-retry propagation policy for corrupt-invariant errors.
type Handler struct {
	logger *zap.Logger
	stats  *Stats
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
		stats:  newStats(),
	}
}

// Handle logs err and records it. It returns err unchanged so callers can
// use `return h.Handle(err)` at a fatal return point.
func (h *Handler) Handle(err error) error {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = NewError(ErrorTypeAssertion, SeverityFatal, err.Error()).WithError(err)
	}

	h.stats.record(appErr)
	h.log(appErr)
	return err
}

func (h *Handler) log(err *AppError) {
	fields := make([]zap.Field, 0, len(err.Context)+3)
	fields = append(fields,
		zap.String("error_type", string(err.Type)),
		zap.String("severity", string(err.Severity)),
		zap.Time("timestamp", err.Timestamp),
	)
	for k, v := range err.Context {
		fields = append(fields, zap.Any(k, v))
	}
	if err.wrapped != nil {
		fields = append(fields, zap.Error(err.wrapped))
	}

	switch err.Severity {
	case SeverityFatal:
		h.logger.Error(err.Message, fields...)
	default:
		h.logger.Warn(err.Message, fields...)
	}
}

// Stats tracks error occurrence counts per type, exposed for the CLI stats
// table and for tests asserting a CapacityOverflow actually fired.
type Stats struct {
	mu     sync.RWMutex
	counts map[ErrorType]int64
}

func newStats() *Stats {
	return &Stats{counts: make(map[ErrorType]int64)}
}

func (s *Stats) record(err *AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[err.Type]++
}

// Counts returns a copy of the current per-type occurrence counts.
func (h *Handler) Counts() map[ErrorType]int64 {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()
	out := make(map[ErrorType]int64, len(h.stats.counts))
	for k, v := range h.stats.counts {
		out[k] = v
	}
	return out
}

// SafeRecover provides panic recovery with logging for a goroutine boundary,
// used by worker goroutines so one worker's panic doesn't take down the
// process without a diagnostic.
func SafeRecover(logger *zap.Logger, operation string) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		logger.Error("panic recovered",
			zap.String("operation", operation),
			zap.Any("panic", r),
			zap.String("stack_trace", string(buf[:n])),
		)
	}
}
