package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/food-delivery/internal/basket"
)

type BasketResponse struct {
	Lines []basket.Line   `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type BasketHandler struct {
	service basket.Service
}

func NewBasketHandler(service basket.Service) *BasketHandler {
	return &BasketHandler{service: service}
}

func (h *BasketHandler) RegisterRoutes(router chi.Router) {
	router.Get("/basket", h.handleGetBasket)
	router.Post("/basket/dish/{dishId}", h.handleAddDish)
	router.Delete("/basket/dish/{dishId}", h.handleModifyBasket)
}

func (h *BasketHandler) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	lines, err := h.service.GetBasket(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get basket")
		return
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total)
	}
	respondWithJSON(w, http.StatusOK, BasketResponse{Lines: lines, Total: total})
}

func (h *BasketHandler) handleAddDish(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dishID, ok := uuidParam(w, r, "dishId")
	if !ok {
		return
	}

	line, err := h.service.AddDish(r.Context(), userID, dishID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add dish to basket")
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

func (h *BasketHandler) handleModifyBasket(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dishID, ok := uuidParam(w, r, "dishId")
	if !ok {
		return
	}

	decrement := false
	if raw := r.URL.Query().Get("decrement"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid decrement parameter")
			return
		}
		decrement = parsed
	}

	if err := h.service.ModifyBasket(r.Context(), userID, dishID, decrement); err != nil {
		respondWithServiceError(w, err, "Failed to modify basket")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
