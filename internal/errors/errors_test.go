package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewDiagError(t *testing.T) {
	cause := errors.New("underlying error")

	err := NewDiagError(SnapshotNotFound, "no snapshot for checksum", cause)

	if err.Code != SnapshotNotFound {
		t.Errorf("Code = %v, want %v", err.Code, SnapshotNotFound)
	}
	if err.Message != "no snapshot for checksum" {
		t.Errorf("Message = %q", err.Message)
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestDiagError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      CompilationFailed,
			message:   "could not compile project app",
			cause:     errors.New("read failed"),
			wantParts: []string{"COMPILATION_FAILED", "could not compile project app", "read failed"},
		},
		{
			name:      "without cause",
			code:      ProjectNotFound,
			message:   "project 'web' not found",
			wantParts: []string{"PROJECT_NOT_FOUND", "project 'web' not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDiagError(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestWithDetails(t *testing.T) {
	err := NewDiagError(InvalidRequest, "bad span", nil).WithDetails(map[string]int{"start": 10, "end": 2})
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(InternalError); fixes != nil {
		t.Errorf("expected no fixes for INTERNAL_ERROR, got %v", fixes)
	}
	if fixes := GetSuggestedFixes(AnalyzerLoadFailed); len(fixes) == 0 {
		t.Error("expected fixes for ANALYZER_LOAD_FAILED")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("computing: %w", NewDiagError(DocumentNotFound, "missing", nil))

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"direct", NewDiagError(Cancelled, "cancelled", nil), Cancelled},
		{"wrapped", wrapped, DocumentNotFound},
		{"plain", errors.New("boom"), InternalError},
		{"nil", nil, InternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf = %v, want %v", got, tt.want)
			}
		})
	}
}
