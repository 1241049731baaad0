package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/pipeline"
)

// maxBodyBytes caps a request body
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Languages follow the embedded prompt files
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		_, err := agents.ParseLanguage(fl.Field().String())
		return err == nil
	})
	return v
}

// RunRequest represents the request body for /run and /run/stream
type RunRequest struct {
	Brief    string `json:"brief" validate:"required,max=20000"`
	Language string `json:"language,omitempty" validate:"omitempty,language"`
}

// StageEvent is the payload of an SSE "stage" event
type StageEvent struct {
	RunID     string `json:"run_id"`
	Stage     string `json:"stage"` // result key
	Agent     string `json:"agent"`
	State     string `json:"state"`
	Completed bool   `json:"completed"`
	Message   string `json:"message"`
	Output    string `json:"output,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
}

// AgentInfo describes one stage for GET /agents
type AgentInfo struct {
	Step        int     `json:"step"`
	Stage       string  `json:"stage"`
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
	Instruction string  `json:"instruction"`
}

// AgentsResponse represents the response for /agents
type AgentsResponse struct {
	Language string      `json:"language"`
	Model    string      `json:"model"`
	Agents   []AgentInfo `json:"agents"`
}

// decodeRunRequest reads and validates a run request. An empty brief is
// reported as pipeline.ErrInvalidBrief so clients get the guidance message.
func (s *Server) decodeRunRequest(w http.ResponseWriter, r *http.Request) (RunRequest, *agents.Catalog, error) {
	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return req, nil, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}

	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	if strings.TrimSpace(req.Brief) == "" {
		return req, nil, pipeline.ErrInvalidBrief
	}

	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return req, nil, &ErrValidation{Field: strings.ToLower(fe.Field()), Message: "failed the '" + fe.Tag() + "' check"}
		}
		return req, nil, &ErrValidation{Field: "body", Message: err.Error()}
	}

	catalog, err := s.catalog(req.Language)
	if err != nil {
		return req, nil, &ErrValidation{Field: "language", Message: err.Error()}
	}
	return req, catalog, nil
}

// catalog returns the catalog for a language, falling back to the server default
func (s *Server) catalog(language string) (*agents.Catalog, error) {
	lang := s.language
	if language != "" {
		parsed, err := agents.ParseLanguage(language)
		if err != nil {
			return nil, err
		}
		lang = parsed
	}
	return agents.NewCatalog(lang)
}

// writeRunError replies with the status for err; invalid briefs carry the guidance text
func (s *Server) writeRunError(w http.ResponseWriter, err error, catalog *agents.Catalog) {
	resp := newErrorResponse(err)
	if errors.Is(err, pipeline.ErrInvalidBrief) {
		if catalog == nil {
			catalog, _ = s.catalog("")
		}
		if catalog != nil {
			resp.Error = catalog.EmptyBriefMessage()
		}
	}
	s.jsonResponse(w, HTTPStatus(err), resp)
}

// acquireRun waits for a free run slot until the request is cancelled
func (s *Server) acquireRun(r *http.Request) error {
	if err := s.runs.Acquire(r.Context(), 1); err != nil {
		return &ErrBusy{Cause: err}
	}
	return nil
}

// handleRun runs the pipeline and returns the result mapping
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, catalog, err := s.decodeRunRequest(w, r)
	if err != nil {
		s.writeRunError(w, err, catalog)
		return
	}

	if err := s.acquireRun(r); err != nil {
		s.writeRunError(w, err, catalog)
		return
	}
	defer s.runs.Release(1)

	orchestrator, err := s.newOrchestrator(catalog, nil)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := orchestrator.Run(r.Context(), req.Brief)
	if err != nil {
		s.logger.Warn("pipeline run failed", "error", err)
		s.writeRunError(w, err, catalog)
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// handleRunStream runs the pipeline and streams progress via SSE
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	req, catalog, err := s.decodeRunRequest(w, r)
	if err != nil {
		s.writeRunError(w, err, catalog)
		return
	}

	if err := s.acquireRun(r); err != nil {
		s.writeRunError(w, err, catalog)
		return
	}
	defer s.runs.Release(1)

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	orchestrator, err := s.newOrchestrator(catalog, func(event pipeline.ProgressEvent) {
		if event.State.Terminal() {
			return
		}
		if err := sse.WriteEvent(EventStage, newStageEvent(event)); err != nil {
			s.logger.Warn("writing SSE event", "error", err)
		}
	})
	if err != nil {
		_ = sse.WriteError(err)
		return
	}

	result, err := orchestrator.Run(r.Context(), req.Brief)
	if err != nil {
		s.logger.Warn("pipeline run failed", "error", err)
		if werr := sse.WriteError(err); werr != nil {
			s.logger.Warn("writing SSE event", "error", werr)
		}
		return
	}

	if err := sse.WriteEvent(EventResult, result); err != nil {
		s.logger.Warn("writing SSE event", "error", err)
	}
}

func newStageEvent(event pipeline.ProgressEvent) StageEvent {
	return StageEvent{
		RunID:     event.RunID,
		Stage:     event.Stage.Key(),
		Agent:     event.Stage.String(),
		State:     string(event.State),
		Completed: event.Completed,
		Message:   event.Message,
		Output:    event.Output,
		ElapsedMS: event.Elapsed.Milliseconds(),
	}
}

// handleAgents lists the four stages with their profiles
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.catalog(r.URL.Query().Get("language"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := AgentsResponse{
		Language: string(catalog.Language()),
		Model:    s.client.Model(),
		Agents:   make([]AgentInfo, 0, agents.NumStages),
	}
	for _, stage := range agents.Stages() {
		profile, err := catalog.Profile(stage)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Agents = append(resp.Agents, AgentInfo{
			Step:        int(stage) + 1,
			Stage:       stage.Key(),
			Name:        profile.Name,
			Temperature: profile.Temperature,
			Instruction: profile.Instruction,
		})
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

// handleHealth returns server health status. It does not contact the inference backend.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "model": s.client.Model()})
}
