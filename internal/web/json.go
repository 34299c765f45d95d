package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sweeney/relay-lights/internal/control"
)

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

// requestID tags each request with an id, reusing the caller's if present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withID(r.Context(), id)))
	})
}

func withID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func idFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// commandBody is the JSON form of a command request. Schedule commands may
// send on/off instead of a combined value.
type commandBody struct {
	Value json.RawMessage `json:"value"`
	On    string          `json:"on"`
	Off   string          `json:"off"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (s *Server) command(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := readValue(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
			return
		}
		req := control.Request{
			ID:      idFrom(r.Context()),
			Source:  "web",
			Command: name,
			Value:   value,
		}
		res, err := s.commander.Submit(r.Context(), req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case control.IsInputError(err):
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		case errors.Is(err, control.ErrStopped):
			writeJSON(w, http.StatusServiceUnavailable, errorJSON{Error: err.Error()})
		default:
			s.logger.Warn("Command failed", "id", req.ID, "command", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorJSON{Error: err.Error()})
		}
	}
}

// readValue extracts the command value from a JSON or form body.
func readValue(w http.ResponseWriter, r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body commandBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			return "", fmt.Errorf("decode body: %w", err)
		}
		if body.On != "" || body.Off != "" {
			return body.On + "-" + body.Off, nil
		}
		return rawString(body.Value)
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("parse form: %w", err)
	}
	if on, off := r.PostForm.Get("on"), r.PostForm.Get("off"); on != "" || off != "" {
		return on + "-" + off, nil
	}
	return strings.TrimSpace(r.PostForm.Get("value")), nil
}

func rawString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode value: %w", err)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("decode value: unsupported %s", raw)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
