package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ReadMarkerInterface は開封済みリンク記録のインターフェース。
type ReadMarkerInterface interface {
	MarkOpened(ctx context.Context, link string) error
}

// ReadHandler は記事の開封済み記録のHTTPハンドラー。
type ReadHandler struct {
	marker ReadMarkerInterface
	logger *slog.Logger
}

// NewReadHandler はReadHandlerを生成する。
func NewReadHandler(marker ReadMarkerInterface, logger *slog.Logger) *ReadHandler {
	return &ReadHandler{marker: marker, logger: logger}
}

// markReadRequest は開封済み記録リクエストのボディ。
type markReadRequest struct {
	Link string `json:"link"`
}

// MarkRead は記事リンクを開封済みとして記録する。
// POST /api/read
func (h *ReadHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "リクエストボディの解析に失敗しました。")
		return
	}
	if req.Link == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "linkが空です。")
		return
	}

	if err := h.marker.MarkOpened(r.Context(), req.Link); err != nil {
		h.logger.Error("開封済みリンクの記録に失敗しました",
			slog.String("error", err.Error()),
		)
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "内部エラーが発生しました。")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
