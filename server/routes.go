// ABOUTME: chi router and REST handlers for the operator control surface: status, read-only
// ABOUTME: persona/template catalogs, session start/state/stream, operator ops, and artifacts.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/m3data/mase-engine/analysis"
	"github.com/m3data/mase-engine/engine"
	"github.com/m3data/mase-engine/llm"
	"github.com/m3data/mase-engine/persona"
	"github.com/m3data/mase-engine/session"
)

// Backend is the subset of *llm.Client the control surface needs for the
// status endpoint's liveness probe and model catalog.
type Backend interface {
	IsRunning(ctx context.Context) bool
	Tags(ctx context.Context) (*llm.TagsResponse, error)
}

// StartSessionRequest is the body of POST /session/start.
type StartSessionRequest struct {
	Provocation  string   `json:"provocation"`
	Personas     []string `json:"personas,omitempty"`
	IncludeHuman bool     `json:"include_human,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
	Config       string   `json:"config,omitempty"`
}

// CreateSessionFunc resolves a start request into a wired *Session:
// persona/model binding, session log, scheduler, and controller
// construction are the caller's job (cmd/masesrv wires the concrete
// collaborators), since the server package knows nothing about where
// persona documents or ensemble YAML files live.
type CreateSessionFunc func(req StartSessionRequest) (*Session, error)

// API wires the Registry, SessionIndex, persona catalog, backend probe,
// and bearer-token auth into a chi router.
type API struct {
	Registry      *Registry
	Index         *SessionIndex
	Config        Config
	Personas      *persona.Store
	Backend       Backend
	Metrics       *Metrics
	CreateSession CreateSessionFunc
}

// NewRouter builds the full chi.Mux for the engine's REST control surface.
func NewRouter(a *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequireAuth(a.Config.AuthToken))

	r.Get("/status", a.handleStatus)
	r.Get("/agents", a.handleListAgents)
	r.Get("/personas", a.handleListPersonas)
	r.Get("/personas/{personaID}", a.handleGetPersona)
	r.Get("/templates", a.handleListTemplates)
	r.Get("/templates/{templateID}", a.handleGetTemplate)

	r.Post("/session/start", a.handleStartSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/state", a.handleSessionState)
		r.Get("/stream", a.handleStream)
		r.Post("/pause", a.handlePause)
		r.Post("/resume", a.handleResume)
		r.Post("/human", a.handleSubmitHuman)
		r.Post("/invoke", a.handleInvoke)
		r.Post("/inject", a.handleInject)
		r.Post("/continue", a.handleContinue)
		r.Post("/end", a.handleEnd)
	})

	r.Get("/sessions", a.handleListSessions)
	r.Get("/sessions/{sessionID}/analysis", a.handleSessionAnalysis)
	r.Get("/sessions/{sessionID}/dialogue", a.handleSessionDialogue)

	if a.Metrics != nil {
		r.Handle("/metrics", a.Metrics.Handler())
	}
	return r
}

// NewSessionID mints a ulid-based session identifier: lexicographically
// sortable by creation time, unlike a bare uuid.
func NewSessionID() string {
	return ulid.Make().String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := false
	var models []string
	if a.Backend != nil {
		running = a.Backend.IsRunning(r.Context())
		if running {
			if tags, err := a.Backend.Tags(r.Context()); err == nil {
				for _, m := range tags.Models {
					models = append(models, m.Name)
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"running_backend":  running,
		"available_models": models,
		"active_sessions":  a.activeSessionCount(),
	})
}

// agentSummary is the short catalog row GET /agents returns for each
// persona available to speak in a circle.
type agentSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Template string `json:"template_id"`
}

func (a *API) handleListAgents(w http.ResponseWriter, r *http.Request) {
	personas := a.Personas.Personas()
	out := make([]agentSummary, 0, len(personas))
	for _, p := range personas {
		out = append(out, agentSummary{ID: p.ID, Name: p.Name, Color: p.Color, Template: p.TemplateID})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Personas.Personas())
}

func (a *API) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	p, ok := a.Personas.Persona(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown persona: "+id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Personas.Templates())
}

func (a *API) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "templateID")
	t, ok := a.Personas.Template(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown template: "+id)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if a.CreateSession == nil {
		writeError(w, http.StatusNotImplemented, "session creation is not configured on this server")
		return
	}
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provocation == "" {
		writeError(w, http.StatusBadRequest, "provocation is required")
		return
	}
	if a.Backend != nil && !a.Backend.IsRunning(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "LLM backend is not reachable")
		return
	}

	s, err := a.CreateSession(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Registry.Add(s); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := a.Index.Record(s.ID, s.CheckpointPath, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if a.Metrics != nil {
		a.Metrics.SessionStarted()
		go a.Metrics.Observe(context.Background(), s.Bus)
	}
	go func() { _ = s.Controller.Run(context.Background()) }()

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": s.ID,
		"agents":     s.Agents,
	})
}

// activeSessionCount counts registered sessions that have not completed.
func (a *API) activeSessionCount() int {
	n := 0
	for _, id := range a.Registry.List() {
		if s, ok := a.Registry.Get(id); ok && s.Controller.State() != engine.StateComplete {
			n++
		}
	}
	return n
}

func (a *API) sessionOr404(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, ok := a.Registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session: "+id)
		return nil, false
	}
	return s, true
}

func (a *API) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"state":      s.Controller.State(),
		"agents":     s.Agents,
		"turns":      s.Controller.TurnHistory(),
	})
}

// handleStream serves one observer's SSE connection. Each connection gets
// its own ephemeral observer id (distinct from the session's ULID) so
// server logs can tell reconnecting observers apart without it ever
// entering the wire protocol or the de-duplication key.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	observerID := uuid.New().String()
	w.Header().Set("X-Observer-Id", observerID)
	sw, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = StreamSession(r.Context(), s.Bus, sw, DefaultHeartbeat)
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	if err := s.Controller.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.Controller.State())})
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	if err := s.Controller.Resume(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.Controller.State())})
}

type humanRequest struct {
	Text string `json:"text"`
}

func (a *API) handleSubmitHuman(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	var req humanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	turn, err := s.Controller.SubmitHuman(req.Text)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

type invokeRequest struct {
	AgentID string `json:"agent_id"`
}

func (a *API) handleInvoke(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.Controller.Invoke(req.AgentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invoked": req.AgentID})
}

type injectRequest struct {
	Text string `json:"text"`
}

func (a *API) handleInject(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := s.Controller.Inject(req.Text); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "injected"})
}

func (a *API) handleContinue(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	if err := s.Controller.Continue(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.Controller.State())})
}

func (a *API) handleEnd(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessionOr404(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	path, err := s.Controller.End(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = a.Index.MarkEnded(s.ID, time.Now())
	if a.Metrics != nil {
		a.Metrics.SessionEnded()
	}
	// The session stays in the registry so later operator calls keep
	// returning Complete instead of 404.
	writeJSON(w, http.StatusOK, map[string]string{"final_path": path})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Index.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	active := map[string]bool{}
	for _, id := range a.Registry.List() {
		if s, ok := a.Registry.Get(id); ok && s.Controller.State() != engine.StateComplete {
			active[id] = true
		}
	}
	type row struct {
		SessionIndexRow
		Active         bool `json:"active"`
		AnalysisExists bool `json:"analysis_exists"`
	}
	out := make([]row, 0, len(rows))
	for _, rr := range rows {
		analysisPath := rr.AnalysisPath
		if analysisPath == "" {
			analysisPath = a.analysisPath(rr.SessionID)
		}
		_, statErr := os.Stat(analysisPath)
		out = append(out, row{
			SessionIndexRow: rr,
			Active:          active[rr.SessionID],
			AnalysisExists:  statErr == nil,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) analysisPath(sessionID string) string {
	return filepath.Join(a.Config.Home, fmt.Sprintf("session_%s_analysis.json", sessionID))
}

func (a *API) dialoguePath(sessionID string) string {
	return filepath.Join(a.Config.Home, fmt.Sprintf("session_%s.json", sessionID))
}

func (a *API) checkpointPath(sessionID string) string {
	return filepath.Join(a.Config.Home, fmt.Sprintf("session_%s_checkpoint.json", sessionID))
}

// loadSessionRecord reads a session's final artifact, falling back to its
// latest checkpoint for sessions that never reached end_session.
func (a *API) loadSessionRecord(sessionID string) (*session.Record, error) {
	rec, err := session.LoadCheckpoint(a.dialoguePath(sessionID))
	if err == nil {
		return rec, nil
	}
	return session.LoadCheckpoint(a.checkpointPath(sessionID))
}

// handleSessionAnalysis serves the summarizer artifact for a session,
// computing and persisting it on first request.
func (a *API) handleSessionAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	path := a.analysisPath(id)
	if data, err := os.ReadFile(path); err == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
		return
	}

	rec, err := a.loadSessionRecord(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown session: "+id)
		return
	}

	summary := analysis.Summarize(id, rec.Turns, analysis.SummarizeOptions{
		Bootstrap: true,
		Resamples: 300,
		Seed:      rec.Seed,
	})
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.WriteFile(path, data, 0o644); err == nil {
		_ = a.Index.SetAnalysisPath(id, path)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleSessionDialogue serves the raw session JSON artifact: the final
// file when the session ended, otherwise its latest checkpoint.
func (a *API) handleSessionDialogue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	for _, path := range []string{a.dialoguePath(id), a.checkpointPath(id)} {
		if data, err := os.ReadFile(path); err == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown session: "+id)
}
