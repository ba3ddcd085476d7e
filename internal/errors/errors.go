package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InvalidRequest indicates a malformed diagnostics request
	InvalidRequest ErrorCode = "INVALID_REQUEST"
	// SnapshotNotFound indicates no workspace snapshot matches the solution checksum
	SnapshotNotFound ErrorCode = "SNAPSHOT_NOT_FOUND"
	// ProjectNotFound indicates the project id is not part of the snapshot
	ProjectNotFound ErrorCode = "PROJECT_NOT_FOUND"
	// DocumentNotFound indicates the document id is not part of the project
	DocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	// CompilationFailed indicates the project could not be compiled
	CompilationFailed ErrorCode = "COMPILATION_FAILED"
	// AnalyzerLoadFailed indicates an analyzer reference could not be resolved
	AnalyzerLoadFailed ErrorCode = "ANALYZER_LOAD_FAILED"
	// Cancelled indicates the caller cancelled the request
	Cancelled ErrorCode = "CANCELLED"
	// StorageUnavailable indicates the performance database is not available
	StorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditFile suggests editing a workspace file
	EditFile FixActionType = "edit-file"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Path        string        `json:"path,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// DiagError represents a diaghost error with code, message, and suggestions
type DiagError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewDiagError creates a new DiagError. Suggested fixes for the code are attached automatically.
func NewDiagError(code ErrorCode, message string, cause error) *DiagError {
	return &DiagError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *DiagError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DiagError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *DiagError) WithDetails(details interface{}) *DiagError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	SnapshotNotFound: {
		{
			Type:        RunCommand,
			Command:     "curl -X POST http://127.0.0.1:7311/v1/workspace/reload",
			Safe:        true,
			Description: "Reload the workspace and retry with the current checksum",
		},
	},
	ProjectNotFound: {
		{
			Type:        EditFile,
			Path:        "diaghost.toml",
			Description: "Declare the project in the workspace manifest",
		},
	},
	AnalyzerLoadFailed: {
		{
			Type:        EditFile,
			Path:        "diaghost.toml",
			Description: "Check the analyzer references of the project",
		},
	},
	StorageUnavailable: {
		{
			Type:        RunCommand,
			Command:     "diaghost config init --force",
			Safe:        true,
			Description: "Recreate the .diaghost directory",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// CodeOf returns the code of a DiagError anywhere in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var de *DiagError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return InternalError
}
