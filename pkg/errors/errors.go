package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SCFT1001"
	ErrCodeConnectionTimeout    ErrorCode = "SCFT1002"
	ErrCodeAuthenticationFailed ErrorCode = "SCFT1003"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "SCFT2001"
	ErrCodeConfigInvalid  ErrorCode = "SCFT2002"

	// Manifest errors (3xxx)
	ErrCodeSchema            ErrorCode = "SCFT3001"
	ErrCodeUnknownMixin      ErrorCode = "SCFT3002"
	ErrCodeDanglingReference ErrorCode = "SCFT3003"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SCFT4001"
	ErrCodeSQLPermission     ErrorCode = "SCFT4002"
	ErrCodeSQLTimeout        ErrorCode = "SCFT4003"
	ErrCodeSQLTransaction    ErrorCode = "SCFT4004"
	ErrCodeSQLObjectNotFound ErrorCode = "SCFT4005"
	ErrCodeSQLExecution      ErrorCode = "SCFT4006"

	// File system errors (5xxx)
	ErrCodeFileNotFound  ErrorCode = "SCFT5001"
	ErrCodeFileOperation ErrorCode = "SCFT5002"

	// Template errors (6xxx)
	ErrCodeUndefinedVariable ErrorCode = "SCFT6001"
	ErrCodeTemplateSyntax    ErrorCode = "SCFT6002"
	ErrCodeIncludeNotFound   ErrorCode = "SCFT6003"
	ErrCodeIncludeCycle      ErrorCode = "SCFT6004"

	// Validation errors (7xxx)
	ErrCodeValidationFailed ErrorCode = "SCFT7001"
	ErrCodeInvalidInput     ErrorCode = "SCFT7002"
	ErrCodeRequiredField    ErrorCode = "SCFT7003"

	// Security errors (8xxx)
	ErrCodeEncryptionFailed    ErrorCode = "SCFT8001"
	ErrCodeCredentialsNotFound ErrorCode = "SCFT8002"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "SCFT9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// SchemaError creates a manifest schema error
func SchemaError(message string, path string) *AppError {
	return New(ErrCodeSchema, message).
		WithContext("path", path).
		WithSuggestions(
			"Check the project manifest against the documented schema",
			"Ensure every entity declares 'type' and 'identifier'",
		)
}

// UnknownMixinError creates an error for an entity referencing an undeclared mixin
func UnknownMixinError(entityKey, mixinName string) *AppError {
	return New(ErrCodeUnknownMixin,
		fmt.Sprintf("entity %q references undeclared mixin %q", entityKey, mixinName)).
		WithContext("entity", entityKey).
		WithContext("mixin", mixinName).
		WithSuggestions(
			fmt.Sprintf("Declare %q under the manifest's 'mixins' block", mixinName),
			"Check for typos in the entity's 'use_mixins' list",
		)
}

// DanglingReferenceError creates an error for a from.target pointing at a missing entity
func DanglingReferenceError(entityKey, target string) *AppError {
	return New(ErrCodeDanglingReference,
		fmt.Sprintf("entity %q derives from nonexistent entity %q", entityKey, target)).
		WithContext("entity", entityKey).
		WithContext("target", target)
}

// UndefinedVariableError creates an error for an unresolved template path
func UndefinedVariableError(path string) *AppError {
	return New(ErrCodeUndefinedVariable,
		fmt.Sprintf("undefined variable %q in template", path)).
		WithContext("variable", path).
		WithSuggestions(
			fmt.Sprintf("Define %q in the manifest 'env' block or process environment", path),
			"Check the spelling of the template expression",
		)
}

// TemplateSyntaxError creates an error for a malformed template tag
func TemplateSyntaxError(message string, pos int) *AppError {
	return New(ErrCodeTemplateSyntax, message).
		WithContext("offset", pos)
}

// IncludeNotFoundError creates an error for an unresolvable include name
func IncludeNotFoundError(name string) *AppError {
	return New(ErrCodeIncludeNotFound,
		fmt.Sprintf("included template %q not found", name)).
		WithContext("include", name).
		WithSuggestions("Check the template search directory for the named file")
}

// IncludeCycleError creates an error for cyclic template inclusion
func IncludeCycleError(chain []string) *AppError {
	return New(ErrCodeIncludeCycle,
		fmt.Sprintf("include cycle detected: %s", strings.Join(chain, " -> "))).
		WithContext("chain", strings.Join(chain, " -> "))
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse endpoint is accessible",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'snowcraft setup' to reconfigure",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if strings.Contains(message, "permission") || strings.Contains(message, "access denied") {
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in the target account",
			"Verify the role has required privileges",
		)
	} else if strings.Contains(message, "timeout") {
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase the statement timeout setting",
			"Check warehouse size",
		)
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
