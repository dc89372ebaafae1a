package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/rating"
)

type EligibilityResponse struct {
	DishID   uuid.UUID `json:"dish_id"`
	Eligible bool      `json:"eligible"`
}

type DishHandler struct {
	dishes  catalog.Service
	ratings rating.Service
}

func NewDishHandler(dishes catalog.Service, ratings rating.Service) *DishHandler {
	return &DishHandler{dishes: dishes, ratings: ratings}
}

// RegisterPublicRoutes mounts the catalog reads, which need no token.
func (h *DishHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/dish", h.handleListDishes)
	router.Get("/dish/{id}", h.handleGetDish)
}

func (h *DishHandler) RegisterRoutes(router chi.Router) {
	router.Get("/dish/{id}/rating/check", h.handleCheckEligibility)
	router.Post("/dish/{id}/rating", h.handleSubmitRating)
}

func (h *DishHandler) handleListDishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.dishes.ListDishes(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list dishes")
		return
	}
	respondWithJSON(w, http.StatusOK, dishes)
}

func (h *DishHandler) handleGetDish(w http.ResponseWriter, r *http.Request) {
	dishID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	dish, err := h.dishes.GetDish(r.Context(), dishID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get dish")
		return
	}
	respondWithJSON(w, http.StatusOK, dish)
}

func (h *DishHandler) handleCheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dishID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	eligible, err := h.ratings.CheckEligibility(r.Context(), userID, dishID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to check rating eligibility")
		return
	}
	respondWithJSON(w, http.StatusOK, EligibilityResponse{DishID: dishID, Eligible: eligible})
}

func (h *DishHandler) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dishID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	rawScore := r.URL.Query().Get("ratingScore")
	score, err := strconv.Atoi(rawScore)
	if err != nil {
		log.Warn().Err(err).Str("rating_score", rawScore).Msg("Failed to parse ratingScore query parameter")
		respondWithError(w, http.StatusBadRequest, "Invalid ratingScore parameter")
		return
	}

	result, err := h.ratings.SubmitRating(r.Context(), userID, dishID, score)
	if err != nil {
		respondWithServiceError(w, err, "Failed to submit rating")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
