package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// ShopHandler serves the service shop directory.
type ShopHandler struct {
	shops  *fleet.ShopService
	logger log.FieldLogger
}

// NewShopHandler creates a ShopHandler.
func NewShopHandler(shops *fleet.ShopService, logger log.FieldLogger) *ShopHandler {
	return &ShopHandler{shops: shops, logger: logger}
}

func (h *ShopHandler) List(w http.ResponseWriter, r *http.Request) {
	shops, err := h.shops.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, shops)
}

func (h *ShopHandler) Create(w http.ResponseWriter, r *http.Request) {
	var shop models.ServiceShop
	if !decodeJSON(w, r, &shop) {
		return
	}
	created, err := h.shops.Create(r.Context(), shop)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ShopHandler) Update(w http.ResponseWriter, r *http.Request) {
	var shop models.ServiceShop
	if !decodeJSON(w, r, &shop) {
		return
	}
	updated, err := h.shops.Update(r.Context(), pathVar(r, "id"), shop)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ShopHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.shops.Delete(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
