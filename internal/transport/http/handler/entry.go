package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ErlanBelekov/distsched/internal/codec"
	"github.com/ErlanBelekov/distsched/internal/dispatch"
	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
	"github.com/gin-gonic/gin"
)

const defaultPageSize = 100

// EntryHandler exposes the client surface (list/get/save/delete) over HTTP.
type EntryHandler struct {
	client   *dispatch.Client
	registry *codec.Registry
	logger   *slog.Logger
}

func NewEntryHandler(client *dispatch.Client, registry *codec.Registry, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{client: client, registry: registry, logger: logger.With("component", "entry_handler")}
}

// List handles GET /entries?page_size=.
func (h *EntryHandler) List(ctx *gin.Context) {
	pageSize := defaultPageSize
	if raw := ctx.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
			return
		}
		pageSize = n
	}

	it := h.client.List(ctx.Request.Context(), pageSize)
	out := make([]json.RawMessage, 0)
	for {
		e, ok, err := it.Next(ctx.Request.Context())
		if err != nil {
			h.logger.Error("list entries", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
			return
		}
		if !ok {
			break
		}
		raw, err := codec.Encode(e)
		if err != nil {
			h.logger.Error("encode entry", "key", e.EntryKey(), "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
			return
		}
		out = append(out, raw)
	}

	ctx.JSON(http.StatusOK, gin.H{"entries": out})
}

// Get handles GET /entries/:key.
func (h *EntryHandler) Get(ctx *gin.Context) {
	key := ctx.Param("key")

	e, err := h.client.Get(ctx.Request.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errEntryNotFound})
			return
		}
		h.logger.Error("get entry", "key", key, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	raw, err := codec.Encode(e)
	if err != nil {
		h.logger.Error("encode entry", "key", key, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.Data(http.StatusOK, "application/json", raw)
}

type saveRequest struct {
	PreserveReadOnly *bool `json:"preserve_read_only"`
}

// Save handles PUT /entries/:key. The body's decoded entry must carry the
// same key as the URL; a mismatch is rejected with 400.
func (h *EntryHandler) Save(ctx *gin.Context) {
	key := ctx.Param("key")

	body, err := ctx.GetRawData()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.registry.Decode(body)
	if err != nil {
		if errors.Is(err, entries.ErrEntryTypeNotRegistered) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errUnknownEntryKind})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errValidation})
		return
	}

	var req saveRequest
	_ = json.Unmarshal(body, &req)
	preserveReadOnly := true
	if req.PreserveReadOnly != nil {
		preserveReadOnly = *req.PreserveReadOnly
	}

	if entry.EntryKey() != key {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "entry key in body must match URL key"})
		return
	}

	if err := h.client.Save(ctx.Request.Context(), entry, preserveReadOnly); err != nil {
		switch {
		case errors.Is(err, store.ErrOverwriteDefaultEntry):
			ctx.JSON(http.StatusConflict, gin.H{"error": errOverwriteDefault})
		case errors.Is(err, entries.ErrValidation):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errValidation})
		default:
			h.logger.Error("save entry", "key", key, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

// Delete handles DELETE /entries/:key.
func (h *EntryHandler) Delete(ctx *gin.Context) {
	key := ctx.Param("key")

	e, err := h.client.Get(ctx.Request.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			ctx.Status(http.StatusNoContent)
			return
		}
		h.logger.Error("get entry for delete", "key", key, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	if err := h.client.Delete(ctx.Request.Context(), e); err != nil {
		h.logger.Error("delete entry", "key", key, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}
