package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/sfmctools/tool"
)

// ToolResponse describes one tool for API consumers.
type ToolResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// MaxTimeoutMS caps the per-invocation timeout a client may request.
const MaxTimeoutMS = int64(10 * time.Minute / time.Millisecond)

// InvokeRequest is the body of POST /api/tools/{name}/invoke.
type InvokeRequest struct {
	Args      map[string]any `json:"args"`
	TimeoutMS int64          `json:"timeout_ms,omitempty"`
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id assigned by the server.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" && len(id) <= 128 {
		return id
	}
	return uuid.NewString()
}

func toToolResponse(schema tool.Schema) ToolResponse {
	return ToolResponse{
		Name:        schema.Name,
		Description: schema.Description,
		Parameters:  schema.JSONSchema(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListTools returns every registered schema in registration order.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	schemas := s.registry.ListSchemas()
	tools := make([]ToolResponse, 0, len(schemas))
	for _, schema := range schemas {
		tools = append(tools, toToolResponse(schema))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	adapter, ok := s.registry.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "TOOL_NOT_FOUND", "tool "+name+" is not registered")
		return
	}
	writeJSON(w, http.StatusOK, toToolResponse(adapter.Schema()))
}

// handleInvokeTool dispatches one invocation. Adapter failures are folded
// into the result body and still answer 200.
func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.registry.Lookup(name); !ok {
		writeError(w, http.StatusNotFound, "TOOL_NOT_FOUND", "tool "+name+" is not registered")
		return
	}

	var req InvokeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a JSON object", err.Error())
		return
	}
	if req.TimeoutMS < 0 || req.TimeoutMS > MaxTimeoutMS {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("timeout_ms must be between 0 and %d", MaxTimeoutMS))
		return
	}

	inv := tool.Invocation{
		Args:      tool.Args(req.Args),
		RequestID: RequestIDFromContext(r.Context()),
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	}
	result, err := s.registry.Invoke(r.Context(), name, inv)
	if err != nil {
		var argErr *tool.ArgumentError
		switch {
		case errors.As(err, &argErr):
			writeJSON(w, http.StatusBadRequest, apiError{Error: apiErrorBody{
				Code:        "INVALID_ARGUMENTS",
				Message:     err.Error(),
				Diagnostics: argErr.Diagnostics,
			}})
		case errors.Is(err, tool.ErrToolNotFound):
			writeError(w, http.StatusNotFound, "TOOL_NOT_FOUND", err.Error())
		default:
			s.logger.ErrorContext(r.Context(), "tool dispatch failed", "tool", name, "request_id", inv.RequestID, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "tool dispatch failed")
		}
		return
	}

	s.logger.DebugContext(r.Context(), "tool invoked", "tool", name, "request_id", inv.RequestID, "success", result.OK())
	writeJSON(w, http.StatusOK, result)
}
