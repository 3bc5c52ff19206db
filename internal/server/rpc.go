package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/copyleftdev/planeopt/internal/problem"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

var errMissingParams = fmt.Errorf("%w: missing required parameters", ErrBadRequest)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

// decodeParams accepts params either as an object or as an array whose
// first element is the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errMissingParams
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		if len(list) == 0 {
			return errMissingParams
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: invalid parameter format, expected object: %v", ErrBadRequest, err)
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.OptimizationID == "" {
		return "", fmt.Errorf("%w: optimization_id is required", ErrBadRequest)
	}
	return p.OptimizationID, nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil, nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	result, found, err := s.dispatch(r.Context(), request)
	if !found {
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID, nil)
		return
	}
	if err != nil {
		if httpStatus(err) == http.StatusBadRequest {
			s.respondWithError(w, codeInvalidParams, "Invalid params", request.ID, err.Error())
		} else {
			s.respondWithError(w, codeServerError, "Server error", request.ID, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func (s *Server) dispatch(ctx context.Context, request rpcRequest) (interface{}, bool, error) {
	switch request.Method {
	case "optimization.solve":
		var spec problem.Spec
		if err := decodeParams(request.Params, &spec); err != nil {
			return nil, true, err
		}
		resp, err := s.solve(ctx, spec)
		return resp, true, err

	case "optimization.start":
		var spec problem.Spec
		if err := decodeParams(request.Params, &spec); err != nil {
			return nil, true, err
		}
		resp, err := s.start(spec)
		return resp, true, err

	case "optimization.status":
		id, err := decodeID(request.Params)
		if err != nil {
			return nil, true, err
		}
		resp, err := s.status(id)
		return resp, true, err

	case "optimization.cancel":
		id, err := decodeID(request.Params)
		if err != nil {
			return nil, true, err
		}
		if err := s.cancel(id); err != nil {
			return nil, true, err
		}
		return map[string]string{"status": "cancellation requested"}, true, nil

	case "surface.evaluate":
		var req SurfaceRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, true, err
		}
		resp, err := s.sampleSurface(ctx, req)
		return resp, true, err

	case "optimization.methods":
		return s.methodsResponse(), true, nil
	}
	return nil, false, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	fields := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		fields["data"] = data
	}
	if code == codeServerError {
		s.logger.Error("Request error", fields)
	} else {
		s.logger.Debug("Request rejected", fields)
	}

	rpcErr := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		rpcErr["data"] = data
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   rpcErr,
		"id":      id,
	})
}
