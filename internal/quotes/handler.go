package quotes

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quoteflow-erp/quoteflow/internal/platform/httpx"
)

// Handler exposes the quote engine over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Post("/clone", h.handleClone)
		r.Post("/line-items", h.handleAddLine)
		r.Patch("/line-items/{lineID}", h.handleEditLine)
		r.Delete("/line-items/{lineID}", h.handleDeleteLine)
		r.Post("/line-items/batch", h.handleBatch)
		r.Get("/invoices", h.handleListInvoices)
		r.Post("/invoices", h.handleCreateInvoice)
		r.Get("/snapshots", h.handleListSnapshots)
		r.Get("/snapshots/{version}", h.handleGetSnapshot)
		r.Get("/revert/{version}/preview", h.handlePreviewRevert)
		r.Post("/revert", h.handleRevert)
		r.Put("/markup", h.handleSetMarkup)
		r.Delete("/markup", h.handleClearMarkup)
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

	quotes, err := h.service.List(r.Context(), projectID, limit, offset)
	if err != nil {
		h.fail(w, r, "list quotes", err)
		return
	}
	out := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toQuoteResponse(q))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toQuoteResponse(q))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "get quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.UpdateMeta(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pathID(r, "id")); err != nil {
		h.fail(w, r, "delete quote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClone(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Clone(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "clone quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toQuoteResponse(q))
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req LineInput
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.AddLine(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "add quote line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toQuoteResponse(q))
}

func (h *Handler) handleEditLine(w http.ResponseWriter, r *http.Request) {
	var req LineEdit
	if !h.decode(w, r, &req) {
		return
	}
	req.ID = pathID(r, "lineID")
	q, err := h.service.EditLine(r.Context(), pathID(r, "id"), req.ID, req)
	if err != nil {
		h.fail(w, r, "edit quote line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.DeleteLine(r.Context(), pathID(r, "id"), pathID(r, "lineID"))
	if err != nil {
		h.fail(w, r, "delete quote line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.CommitBatch(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "batch update quote lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invs, err := h.service.ListInvoices(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	out := make([]InvoiceResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), pathID(r, "id"), req)
	if err != nil {
		h.fail(w, r, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
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
	q, err := h.service.Revert(r.Context(), pathID(r, "id"), req.Version)
	if err != nil {
		h.fail(w, r, "revert quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleSetMarkup(w http.ResponseWriter, r *http.Request) {
	var req MarkupRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.SetGlobalMarkup(r.Context(), pathID(r, "id"), req.Percent)
	if err != nil {
		h.fail(w, r, "set global markup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) handleClearMarkup(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.ClearGlobalMarkup(r.Context(), pathID(r, "id"))
	if err != nil {
		h.fail(w, r, "clear global markup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(q))
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
