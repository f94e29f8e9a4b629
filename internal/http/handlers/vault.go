package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/vaulthub/internal/domain/vault"
	"github.com/geocoder89/vaulthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type VaultFlow interface {
	Create(ctx context.Context, ownerID string, in vault.CreateEntryInput) (vault.EntryView, error)
	ListMine(ctx context.Context, ownerID string) ([]vault.EntryView, error)
	Update(ctx context.Context, ownerID, id string, in vault.UpdateEntryInput) (vault.EntryView, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type VaultHandler struct {
	flow VaultFlow
}

func NewVaultHandler(flow VaultFlow) *VaultHandler {
	return &VaultHandler{flow: flow}
}

func ownerID(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthenticated", "You must be logged in to access this page")
	}
	return id, ok
}

func (h *VaultHandler) Create(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}

	var req vault.CreateEntryInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	entry, err := h.flow.Create(cctx, owner, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"passwords": entry,
	})
}

func (h *VaultHandler) ListMine(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	entries, err := h.flow.ListMine(cctx, owner)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"status":    "success",
		"results":   len(entries),
		"passwords": entries,
	})
}

func (h *VaultHandler) Update(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}

	var req vault.UpdateEntryInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	entry, err := h.flow.Update(cctx, owner, ctx.Param("id"), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"password": entry,
	})
}

func (h *VaultHandler) Delete(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	if err := h.flow.Delete(cctx, owner, ctx.Param("id")); err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"status": "success"})
}
