package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// ProductsHandler handles catalog and stock endpoints.
type ProductsHandler struct {
	DB *sql.DB
}

type createProductRequest struct {
	SKU         string          `json:"sku" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createVariantRequest struct {
	SKU       string           `json:"sku" validate:"required,max=64"`
	Name      string           `json:"name" validate:"required,max=200"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type receiveStockRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// List handles GET /api/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := store.ListProducts(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list products", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	jsonResponse(w, http.StatusOK, products)
}

// Create handles POST /api/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UnitPrice.IsNegative() {
		jsonError(w, http.StatusBadRequest, "unit_price must not be negative")
		return
	}

	product, err := store.CreateProduct(r.Context(), h.DB, req.SKU, req.Name, req.Description, req.UnitPrice)
	if err != nil {
		if store.IsUniqueViolation(err) {
			jsonError(w, http.StatusConflict, "sku already exists")
			return
		}
		slog.Error("failed to create product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	slog.Info("product created", "product", product.ID, "sku", product.SKU, "user", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusCreated, product)
}

// Get handles GET /api/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}
	jsonResponse(w, http.StatusOK, product)
}

// CreateVariant handles POST /api/products/{id}/variants.
func (h *ProductsHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req createVariantRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		jsonError(w, http.StatusBadRequest, "unit_price must not be negative")
		return
	}

	product, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create variant")
		return
	}
	if product == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}

	variant, err := store.CreateVariant(r.Context(), h.DB, id, req.SKU, req.Name, req.UnitPrice)
	if err != nil {
		slog.Error("failed to create variant", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create variant")
		return
	}
	jsonResponse(w, http.StatusCreated, variant)
}

// ListStock handles GET /api/stock.
func (h *ProductsHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := store.ListStock(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list stock", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock")
		return
	}
	if levels == nil {
		levels = []model.StockLevel{}
	}
	jsonResponse(w, http.StatusOK, levels)
}

// ReceiveStock handles POST /api/stock.
func (h *ProductsHandler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req receiveStockRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.ReceiveStock(r.Context(), h.DB, req.ProductID, req.VariantID, req.Quantity); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("stock received", "product", req.ProductID, "quantity", req.Quantity, "user", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "stock received"})
}

// ListAdjustments handles GET /api/adjustments.
func (h *ProductsHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	var filter model.AdjustmentFilter
	for param, dst := range map[string]*int64{"session_id": &filter.SessionID, "product_id": &filter.ProductID} {
		v := r.URL.Query().Get(param)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid "+param)
			return
		}
		*dst = n
	}

	adjustments, err := store.ListAdjustments(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list adjustments", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list adjustments")
		return
	}
	if adjustments == nil {
		adjustments = []model.Adjustment{}
	}
	jsonResponse(w, http.StatusOK, adjustments)
}
