package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/amarket/chat-service/pkg/errs"
	"github.com/amarket/chat-service/pkg/logger"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// OK — успешный ответ с обёрткой.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

// Error — унифицированная ошибка (message + meta).
func Error(ctx context.Context, w http.ResponseWriter, status int, msg string, meta map[string]any) {
	errBody := envelope{"message": msg}
	if len(meta) > 0 {
		errBody["meta"] = meta
	}
	if reqID, ok := FromContext(ctx); ok {
		w.Header().Set(HeaderRequestID, reqID)
	}
	JSON(w, status, envelope{"error": errBody})
}

// Fail переводит доменную ошибку в статус; 5xx пишет в лог запроса.
func Fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := errs.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).ErrorContext(ctx, "request failed", slog.Any("err", err))
	}
	Error(ctx, w, status, errs.Message(err), nil)
}
