package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/food-delivery/internal/order"
)

type CreateOrderRequest struct {
	DeliveryTime time.Time `json:"deliveryTime" validate:"required"`
	Address      string    `json:"address" validate:"required,min=3,max=500"`
}

type OrderLineResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Total         decimal.Decimal `json:"total"`
	Image         string          `json:"image"`
	Rating        *int            `json:"rating,omitempty"`
	InitialRating *float64        `json:"initial_rating,omitempty"`
}

type OrderResponse struct {
	ID           uuid.UUID           `json:"id"`
	DeliveryTime time.Time           `json:"delivery_time"`
	OrderTime    time.Time           `json:"order_time"`
	Status       order.Status        `json:"status"`
	TotalPrice   decimal.Decimal     `json:"total_price"`
	Address      string              `json:"address"`
	Lines        []OrderLineResponse `json:"lines,omitempty"`
}

type OrderSummaryResponse struct {
	ID           uuid.UUID       `json:"id"`
	DeliveryTime time.Time       `json:"delivery_time"`
	OrderTime    time.Time       `json:"order_time"`
	Status       order.Status    `json:"status"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

type OrderHandler struct {
	service  order.Service
	qr       order.QRGenerator
	validate *validator.Validate
}

func NewOrderHandler(service order.Service, qr order.QRGenerator) *OrderHandler {
	return &OrderHandler{
		service:  service,
		qr:       qr,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/order", h.handleListOrders)
	router.Post("/order", h.handleCreateOrder)
	router.Get("/order/{id}", h.handleGetOrder)
	router.Post("/order/{id}/status", h.handleAdvanceStatus)
	router.Get("/order/{id}/qrcode", h.handleOrderQRCode)
}

func toOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:           o.ID,
		DeliveryTime: o.DeliveryTime,
		OrderTime:    o.OrderTime,
		Status:       o.Status,
		TotalPrice:   o.TotalPrice,
		Address:      o.Address,
	}
	for _, line := range o.Lines {
		resp.Lines = append(resp.Lines, OrderLineResponse{
			ID:            line.ID,
			Name:          line.Name,
			Price:         line.Price,
			Quantity:      line.Quantity,
			Total:         line.Total(),
			Image:         line.Image,
			Rating:        line.Rating,
			InitialRating: line.InitialRating,
		})
	}
	return resp
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var requestPayload CreateOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if ok {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	created, err := h.service.CreateOrder(r.Context(), userID, requestPayload.DeliveryTime, requestPayload.Address)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}
	respondWithJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	resp := make([]OrderSummaryResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, OrderSummaryResponse{
			ID:           o.ID,
			DeliveryTime: o.DeliveryTime,
			OrderTime:    o.OrderTime,
			Status:       o.Status,
			TotalPrice:   o.TotalPrice,
		})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order by id")
		return
	}
	respondWithJSON(w, http.StatusOK, toOrderResponse(found))
}

func (h *OrderHandler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.AdvanceStatus(r.Context(), orderID); err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":     orderID,
		"status": order.StatusDelivered,
	})
}

func (h *OrderHandler) handleOrderQRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.service.GetOrder(r.Context(), userID, orderID); err != nil {
		respondWithServiceError(w, err, "Failed to get order by id")
		return
	}

	png, err := h.qr.Generate(orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to generate order QR code")
		respondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Error().Err(err).Msg("Failed to write QR code response")
	}
}
