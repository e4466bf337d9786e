package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/httputil"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/middleware"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/monitoring"
)

// ProductsHandler godoc
// @Summary List products
// @Tags shop
// @Produce json
// @Success 200 {array} models.Product
// @Router /products [get]
func (h *Handlers) ProductsHandler(w http.ResponseWriter, r *http.Request) {
	var products []models.Product
	if err := h.db.WithContext(r.Context()).Find(&products).Error; err != nil {
		logger.Log.Error("failed to fetch products", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

type AddCartItemRequest struct {
	ProductID uint `json:"productId"`
	Quantity  int  `json:"quantity"`
}

// GetCartHandler godoc
// @Summary Active cart for the current user
// @Tags shop
// @Produce json
// @Success 200 {object} models.Cart
// @Security BearerAuth
// @Router /cart [get]
func (h *Handlers) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	cart, err := h.activeCart(r)
	if err != nil {
		logger.Log.Error("failed to load cart", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cart)
}

// AddCartItemHandler godoc
// @Summary Add a product to the active cart
// @Tags shop
// @Accept json
// @Produce json
// @Param request body AddCartItemRequest true "item"
// @Success 200 {object} models.Cart
// @Security BearerAuth
// @Router /cart/items [post]
func (h *Handlers) AddCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if req.Quantity <= 0 {
		httputil.WriteAppError(w, apperrors.Validation("quantity", "must be positive"))
		return
	}

	var product models.Product
	err := h.db.WithContext(r.Context()).First(&product, req.ProductID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httputil.WriteAppError(w, apperrors.ErrNotFound)
		return
	}
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	cart, err := h.activeCart(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.CartItem{
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  req.Quantity,
			}).Error
		case err != nil:
			return err
		default:
			item.Quantity += req.Quantity
			return tx.Save(&item).Error
		}
	})
	if err != nil {
		logger.Log.Error("failed to add cart item", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}

	cart, err = h.activeCart(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cart)
}

func (h *Handlers) activeCart(r *http.Request) (*models.Cart, error) {
	var cart models.Cart
	err := h.db.WithContext(r.Context()).
		Where(models.Cart{UserID: middleware.UserID(r.Context()), Status: models.CartActive}).
		Preload("Items").
		FirstOrCreate(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

type CheckoutRequest struct {
	PaymentMethod  models.PaymentMethod `json:"paymentMethod"`
	IdempotencyKey string               `json:"idempotencyKey"`
}

// CheckoutHandler godoc
// @Summary Check out the active cart
// @Tags shop
// @Accept json
// @Produce json
// @Param request body CheckoutRequest true "payment method and optional idempotency key"
// @Success 200 {object} checkout.Result
// @Security BearerAuth
// @Router /checkout [post]
func (h *Handlers) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	result, err := h.checkout.Checkout(r.Context(), middleware.UserID(r.Context()), req.PaymentMethod, req.IdempotencyKey)
	if err != nil {
		monitoring.CheckoutsTotal.WithLabelValues("failed").Inc()
		logger.Log.Warn("checkout failed",
			zap.String("user_id", middleware.UserID(r.Context())),
			zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	monitoring.CheckoutsTotal.WithLabelValues("completed").Inc()

	httputil.WriteJSON(w, http.StatusOK, result)
}

// OrdersHandler godoc
// @Summary List the current user's orders
// @Tags shop
// @Produce json
// @Success 200 {array} models.Order
// @Security BearerAuth
// @Router /orders [get]
func (h *Handlers) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	var orders []models.Order
	err := h.db.WithContext(r.Context()).
		Where("user_id = ?", middleware.UserID(r.Context())).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		logger.Log.Error("failed to fetch orders", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

// OrderHandler godoc
// @Summary Fetch one order by id
// @Tags shop
// @Produce json
// @Param id path int true "order id"
// @Success 200 {object} models.Order
// @Security BearerAuth
// @Router /orders/{id} [get]
func (h *Handlers) OrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteAppError(w, apperrors.Validation("id", "must be a number"))
		return
	}

	var order models.Order
	err = h.db.WithContext(r.Context()).
		Where("user_id = ?", middleware.UserID(r.Context())).
		Preload("Items").
		First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httputil.WriteAppError(w, apperrors.ErrNotFound)
		return
	}
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

// VerifyPaymentHandler godoc
// @Summary Re-check a gateway payment and reconcile its local status
// @Tags shop
// @Produce json
// @Param ref path string true "gateway reference"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{ref}/verify [get]
func (h *Handlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.checkout.VerifyPayment(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		logger.Log.Warn("payment verification failed", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
