package purchaseorders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quoteflow-erp/quoteflow/internal/platform/httpx"
)

// Handler exposes the purchase order engine over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Post("/line-items", h.handleAddLine)
		r.Patch("/line-items/{lineID}", h.handleUpdateLine)
		r.Delete("/line-items/{lineID}", h.handleDeleteLine)
		r.Post("/line-items/batch", h.handleBatch)
		r.Get("/receivings", h.handleListReceivings)
		r.Post("/receivings", h.handleCreateReceiving)
		r.Get("/snapshots", h.handleListSnapshots)
		r.Get("/snapshots/{version}", h.handleGetSnapshot)
		r.Get("/revert/{version}/preview", h.handlePreviewRevert)
		r.Post("/revert", h.handleRevert)
	})
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	projectID, _ := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)

	pos, err := h.service.List(r.Context(), projectID, limit, offset)
	if err != nil {
		h.fail(w, r, "list purchase orders", err)
		return
	}
	out := make([]POResponse, 0, len(pos))
	for _, po := range pos {
		out = append(out, toPOResponse(po))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreatePORequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdatePORequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.UpdateMeta(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "update purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pathID(r, "id")); err != nil {
		h.fail(w, r, "delete purchase order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req LineInput
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.AddLine(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "add po line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po))
}

func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	var req LineEdit
	if !h.decode(w, r, &req) {
		return
	}
	req.ID = pathID(r, "lineID")
	po, err := h.service.UpdateLine(r.Context(), pathID(r, "id"), req.ID, req)
	if err != nil {
		h.fail(w, r, "update po line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.DeleteLine(r.Context(), pathID(r, "id"), pathID(r, "lineID"))
	if err != nil {
		h.fail(w, r, "delete po line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.CommitBatch(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "batch update po lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleListReceivings(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.ListReceivings(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "list receivings", err)
		return
	}
	out := make([]ReceivingResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReceivingResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateReceiving(w http.ResponseWriter, r *http.Request) {
	var req ReceivingRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.CreateReceiving(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "create receiving", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReceivingResponse(rec))
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.ListSnapshots(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "list snapshots", err)
		return
	}
	out := make([]SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshotResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	version, _ := strconv.Atoi(chi.URLParam(r, "version"))
	snap, err := h.service.GetSnapshot(r.Context(), pathID(r, "id"), version)
	if err != nil {
		h.fail(w, r, "get snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (h *Handler) handlePreviewRevert(w http.ResponseWriter, r *http.Request) {
	version, _ := strconv.Atoi(chi.URLParam(r, "version"))
	preview, err := h.service.PreviewRevert(r.Context(), pathID(r, "id"), version)
	if err != nil {
		h.fail(w, r, "preview revert", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.service.Revert(r.Context(), pathID(r, "id"), req.Version)
	if err != nil {
		h.fail(w, r, "revert purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
