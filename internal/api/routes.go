package api

import (
	"net/http"

	"diaghost/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)

	// Workspace snapshots
	s.router.HandleFunc("/v1/workspace", s.handleWorkspace)
	s.router.HandleFunc("/v1/workspace/reload", s.handleWorkspaceReload) // POST

	// Diagnostics and scheduling
	s.router.HandleFunc("/v1/diagnostics", s.handleDiagnostics)           // POST
	s.router.HandleFunc("/v1/deprioritization", s.handleDeprioritization) // POST
	s.router.HandleFunc("/v1/analyzers", s.handleAnalyzers)               // GET ?projectId=
	s.router.HandleFunc("/v1/cache", s.handleCache)                       // GET

	// Performance statistics
	s.router.HandleFunc("/v1/performance", s.handlePerformance)                // GET ?span=, POST
	s.router.HandleFunc("/v1/performance/reports", s.handlePerformanceReports) // GET ?days=&span=
	s.router.HandleFunc("/v1/telemetry/session", s.handleTelemetrySession)     // GET, PUT

	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	WriteJSON(w, map[string]interface{}{
		"name":    "diaghost",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Health check",
			"GET /v1/workspace - Current snapshot",
			"POST /v1/workspace/reload - Reload the workspace",
			"POST /v1/diagnostics - Compute diagnostics (JSON or application/x-protobuf)",
			"POST /v1/deprioritization - Deprioritization candidates",
			"GET /v1/analyzers?projectId=... - Analyzers attached to a project",
			"GET /v1/cache - Compilation cache statistics",
			"GET /v1/performance?span=true - Latest analyzer statistics",
			"POST /v1/performance - Report analyzer timings",
			"GET /v1/performance/reports?days=N - Stored performance reports",
			"GET/PUT /v1/telemetry/session - Telemetry session state",
		},
	}, http.StatusOK)
}
