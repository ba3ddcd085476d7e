package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"diaghost/internal/diagnostics"
	"diaghost/internal/errors"
	"diaghost/internal/perf"
	"diaghost/internal/storage"
	"diaghost/internal/version"
)

const (
	contentTypeProtobuf = "application/x-protobuf"
	maxBodyBytes        = 4 << 20
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Checksum  string    `json:"checksum,omitempty"`
}

// ProjectInfo describes one project of a snapshot
type ProjectInfo struct {
	ID        string `json:"id"`
	Language  string `json:"language"`
	Root      string `json:"root"`
	Documents int    `json:"documents"`
	Analyzers int    `json:"analyzerReferences"`
}

// WorkspaceResponse describes the current snapshot
type WorkspaceResponse struct {
	Checksum      string        `json:"checksum"`
	Root          string        `json:"root"`
	LoadedAt      time.Time     `json:"loadedAt"`
	HostAnalyzers int           `json:"hostAnalyzerReferences"`
	Projects      []ProjectInfo `json:"projects"`
}

// TimingRequest is one analyzer timing as sent by remote callers
type TimingRequest struct {
	AnalyzerID string  `json:"analyzerId"`
	BuiltIn    bool    `json:"builtIn"`
	ElapsedMs  float64 `json:"elapsedMs"`
}

// PerformanceReportRequest is the body of POST /v1/performance
type PerformanceReportRequest struct {
	Timings   []TimingRequest `json:"timings"`
	UnitCount int             `json:"unitCount"`
	ForSpan   bool            `json:"forSpan"`
}

// DeprioritizationRequest is the body of POST /v1/deprioritization
type DeprioritizationRequest struct {
	ProjectID   string   `json:"projectId"`
	AnalyzerIDs []string `json:"analyzerIds"`
}

// AnalyzersResponse lists the analyzers attached to a project
type AnalyzersResponse struct {
	ProjectID string   `json:"projectId"`
	Checksum  string   `json:"checksum"`
	Host      []string `json:"host"`
	Project   []string `json:"project"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if cur := s.deps.Service.CurrentSnapshot(); cur != nil {
		resp.Checksum = cur.Checksum.String()
	}
	WriteJSON(w, resp, http.StatusOK)
}

// handleWorkspace handles GET /v1/workspace
func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	solution, err := s.deps.Service.Snapshot(r.URL.Query().Get("checksum"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	resp := WorkspaceResponse{
		Checksum:      solution.Checksum.String(),
		Root:          solution.Root,
		LoadedAt:      solution.LoadedAt,
		HostAnalyzers: len(solution.AnalyzerReferences),
		Projects:      make([]ProjectInfo, 0, len(solution.Projects)),
	}
	for _, p := range solution.Projects {
		resp.Projects = append(resp.Projects, ProjectInfo{
			ID:        p.ID,
			Language:  p.Language,
			Root:      p.Root,
			Documents: len(p.Documents),
			Analyzers: len(p.AnalyzerReferences),
		})
	}
	WriteJSON(w, resp, http.StatusOK)
}

// handleWorkspaceReload handles POST /v1/workspace/reload
func (s *Server) handleWorkspaceReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}
	if s.deps.Reload == nil {
		WriteError(w, errors.NewDiagError(errors.InvalidRequest, "workspace reload is not configured", nil), http.StatusNotImplemented)
		return
	}

	solution, err := s.deps.Reload(r.Context())
	if err != nil {
		s.logger.Warn("Workspace reload failed", "error", err)
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, map[string]interface{}{
		"checksum":  solution.Checksum.String(),
		"projects":  len(solution.Projects),
		"documents": solution.DocumentCount(),
	}, http.StatusOK)
}

// handleDiagnostics handles POST /v1/diagnostics
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	var q diagnostics.Query
	if !decodeBody(w, r, &q) {
		return
	}
	if q.ProjectID == "" {
		BadRequest(w, "projectId is required")
		return
	}

	res, err := s.deps.Service.Compute(r.Context(), q)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if acceptsProtobuf(r) {
		s.writeProtobuf(w, res)
		return
	}
	WriteJSON(w, res, http.StatusOK)
}

func acceptsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(mt, contentTypeProtobuf) {
			return true
		}
	}
	return false
}

// writeProtobuf encodes v as a google.protobuf.Struct.
func (s *Server) writeProtobuf(w http.ResponseWriter, v interface{}) {
	st, err := toStruct(v)
	if err != nil {
		InternalError(w, "Failed to encode response", err)
		return
	}
	data, err := proto.Marshal(st)
	if err != nil {
		InternalError(w, "Failed to encode response", err)
		return
	}
	w.Header().Set("Content-Type", contentTypeProtobuf)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// toStruct converts v through its JSON form so field names match the JSON API.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// handleDeprioritization handles POST /v1/deprioritization
func (s *Server) handleDeprioritization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	var req DeprioritizationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	set, err := s.deps.Service.GetDeprioritizationCandidates(r.Context(), req.ProjectID, req.AnalyzerIDs)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	candidates := make([]string, 0, len(set))
	for id := range set {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)

	WriteJSON(w, map[string]interface{}{
		"projectId":  req.ProjectID,
		"candidates": candidates,
	}, http.StatusOK)
}

// handleAnalyzers handles GET /v1/analyzers?projectId=&checksum=
func (s *Server) handleAnalyzers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		BadRequest(w, "projectId is required")
		return
	}
	solution, err := s.deps.Service.Snapshot(r.URL.Query().Get("checksum"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	project := solution.Project(projectID)
	if project == nil {
		WriteServiceError(w, errors.NewDiagError(errors.ProjectNotFound, "project "+strconv.Quote(projectID)+" not found", nil))
		return
	}

	host, proj, err := s.deps.Service.ListAnalyzers(r.Context(), solution.Checksum, project)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, AnalyzersResponse{
		ProjectID: projectID,
		Checksum:  solution.Checksum.String(),
		Host:      host,
		Project:   proj,
	}, http.StatusOK)
}

// handleCache handles GET /v1/cache
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	WriteJSON(w, s.deps.Service.CacheStats(), http.StatusOK)
}

// handlePerformance handles GET and POST /v1/performance
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		forSpan, _ := strconv.ParseBool(r.URL.Query().Get("span"))
		WriteJSON(w, map[string]interface{}{
			"forSpan":   forSpan,
			"analyzers": s.deps.Service.PerformanceData(forSpan),
		}, http.StatusOK)

	case http.MethodPost:
		var req PerformanceReportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		timings := make([]perf.AnalyzerTiming, 0, len(req.Timings))
		for _, t := range req.Timings {
			if t.AnalyzerID == "" || t.ElapsedMs < 0 {
				BadRequest(w, "every timing needs an analyzerId and a non-negative elapsedMs")
				return
			}
			timings = append(timings, perf.AnalyzerTiming{
				AnalyzerID: t.AnalyzerID,
				BuiltIn:    t.BuiltIn,
				Elapsed:    time.Duration(t.ElapsedMs * float64(time.Millisecond)),
			})
		}
		s.deps.Service.ReportPerformance(timings, req.UnitCount, req.ForSpan)
		WriteJSON(w, map[string]interface{}{"accepted": len(timings)}, http.StatusAccepted)

	default:
		MethodNotAllowed(w)
	}
}

// handlePerformanceReports handles GET /v1/performance/reports?days=&span=&limit=
func (s *Server) handlePerformanceReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}
	if s.deps.Store == nil {
		WriteServiceError(w, errors.NewDiagError(errors.StorageUnavailable, "performance storage is not configured", nil))
		return
	}

	q := r.URL.Query()
	days := 7
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			BadRequest(w, "days must be a positive integer")
			return
		}
		days = n
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	var forSpan *bool
	if v := q.Get("span"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "span must be a boolean")
			return
		}
		forSpan = &b
	}

	records, err := s.deps.Store.GetPerformanceReports(time.Now().AddDate(0, 0, -days), forSpan, limit)
	if err != nil {
		WriteServiceError(w, errors.NewDiagError(errors.StorageUnavailable, "failed to read performance reports", err))
		return
	}
	if records == nil {
		records = []storage.PerformanceRecord{}
	}
	WriteJSON(w, map[string]interface{}{
		"days":    days,
		"records": records,
	}, http.StatusOK)
}

// handleTelemetrySession handles GET and PUT /v1/telemetry/session
func (s *Server) handleTelemetrySession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Telemetry == nil {
		WriteError(w, errors.NewDiagError(errors.InvalidRequest, "telemetry is not configured", nil), http.StatusNotImplemented)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req struct {
			Active *bool `json:"active"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Active == nil {
			BadRequest(w, "active is required")
			return
		}
		s.deps.Telemetry.SetActive(*req.Active)
	default:
		MethodNotAllowed(w)
		return
	}

	WriteJSON(w, map[string]bool{"active": s.deps.Telemetry.HasActiveSession()}, http.StatusOK)
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
