package server

import (
	"net/http"

	"Tunora/core/apperr"
	"Tunora/logger"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// envelope 统一响应格式
type envelope struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("编码响应失败", logger.ErrorField(err))
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{StatusCode: status, Message: message, Data: data})
}

// writeError maps err to its status code. Internal errors are logged and
// their cause is never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if kind == apperr.Internal {
		fields := append(requestFields(r), zap.Error(err))
		logger.Error("request failed", fields...)
	}
	writeJSON(w, status, envelope{
		StatusCode: status,
		Message:    apperr.MessageOf(err),
		Error:      http.StatusText(status),
	})
}

// requestFields identifies the request and, once authenticated, its caller.
func requestFields(r *http.Request) []zap.Field {
	ctx := r.Context()
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFromContext(ctx)),
	}
	if userID, err := GetUserIDFromContext(ctx); err == nil {
		fields = append(fields, zap.Int64("user_id", userID))
	}
	if role := GetRoleFromContext(ctx); role != "" {
		fields = append(fields, zap.String("role", role))
	}
	return fields
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid request body", err)
	}
	return nil
}
