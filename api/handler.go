// Package api 暴露助手的 HTTP 边界：POST /chat 与 POST /clear_history。
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ChatService 抽象对话能力，便于测试时替换。
type ChatService interface {
	ProcessMessage(ctx context.Context, userID, input string) (string, error)
	ClearHistory(ctx context.Context, userID string) error
}

// Handler 持有路由依赖。
type Handler struct {
	chat   ChatService
	logger *slog.Logger
}

// NewHandler 创建 API 处理器。
func NewHandler(chat ChatService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chat: chat, logger: logger}
}

// Routes 构建完整路由表。
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Post("/chat", h.handleChat)
	r.Post("/clear_history", h.handleClearHistory)
	r.Get("/healthz", h.handleHealth)
	return r
}

// chatRequest 是 /chat 与 /clear_history 的请求体。
type chatRequest struct {
	UserID string `json:"user_id"`
	Input  string `json:"input"`
}

// chatResponse 是 /chat 的响应体。
type chatResponse struct {
	Response string `json:"response"`
}

// messageResponse 是 /clear_history 的响应体。
type messageResponse struct {
	Message string `json:"message"`
}

// handleChat 处理一轮对话。
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		h.writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	answer, err := h.chat.ProcessMessage(r.Context(), req.UserID, req.Input)
	if err != nil {
		// 内部错误细节只进日志，不回给用户
		h.logger.Error("chat processing failed", "user", req.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	h.writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}

// handleClearHistory 清空用户历史。
func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	if err := h.chat.ClearHistory(r.Context(), req.UserID); err != nil {
		h.logger.Error("clear history failed", "user", req.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Chat history cleared."})
}

// handleHealth 是探活端点。
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeRequest 解析并校验通用请求体。
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return req, false
	}
	return req, true
}

// writeJSON 输出 JSON 响应。
func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError 输出 {"error": ...}。
func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
