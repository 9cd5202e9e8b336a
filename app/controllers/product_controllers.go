package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/cart"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/bind"
	"github.com/rmoraes/braseiro/pkg/cache"
	"github.com/rmoraes/braseiro/pkg/response"
)

// productsCacheKey caches the catalogue listing; invalidated on every write.
const (
	productsCacheKey = "braseiro:cache:products"
	productsCacheTTL = 30 * time.Second
)

type ProductController struct {
	storage *store.Manager
	cart    *cart.Model
}

func NewProductController(storage *store.Manager, model *cart.Model) *ProductController {
	return &ProductController{storage: storage, cart: model}
}

// Index lists the catalogue, read-through cached.
func (c *ProductController) Index(w http.ResponseWriter, r *http.Request) {
	var products []models.Product
	if cache.Get(productsCacheKey, &products) {
		response.Success(w, products)
		return
	}

	products, err := c.storage.LoadProducts(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	cache.Set(productsCacheKey, products, productsCacheTTL) //nolint:errcheck
	response.Success(w, products)
}

type productInput struct {
	Name      string           `json:"name"     validate:"required,min=2,max=255"`
	Price     float64          `json:"price"    validate:"required,numeric,gte=0"`
	Category  string           `json:"category" validate:"nullable,max=100"`
	Stock     int              `json:"stock"    validate:"gte=0"`
	MinStock  int              `json:"minStock" validate:"gte=0"`
	Active    bool             `json:"active"`
	Promotion models.Promotion `json:"promotion"`
}

// Create inserts a catalogue row and refreshes the live catalogue.
func (c *ProductController) Create(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p := models.Product{
		Name:      in.Name,
		Price:     in.Price,
		Category:  in.Category,
		Stock:     in.Stock,
		MinStock:  in.MinStock,
		Active:    in.Active,
		Promotion: in.Promotion,
	}
	if err := c.storage.SaveProduct(r.Context(), &p); err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.refreshCatalog(r)
	response.Created(w, p)
}

// Update upserts one catalogue row by ID.
func (c *ProductController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var in productInput
	if errs, berr := bind.JSON(r, &in); berr != nil {
		response.Error(w, http.StatusBadRequest, berr.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	p := models.Product{
		ID:        uint(id),
		Name:      in.Name,
		Price:     in.Price,
		Category:  in.Category,
		Stock:     in.Stock,
		MinStock:  in.MinStock,
		Active:    in.Active,
		Promotion: in.Promotion,
	}
	if err := c.storage.SaveProduct(r.Context(), &p); err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.refreshCatalog(r)
	response.Success(w, p)
}

// LowStock reports products at or under their reorder threshold.
func (c *ProductController) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := c.storage.LoadProducts(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	low := make([]models.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	response.Success(w, low)
}

// refreshCatalog reloads the persisted catalogue into the cart model and
// drops the listing cache, so reservations act on current rows.
func (c *ProductController) refreshCatalog(r *http.Request) {
	cache.Del(productsCacheKey) //nolint:errcheck
	if products, err := c.storage.LoadProducts(r.Context()); err == nil {
		c.cart.SetCatalog(products)
	}
}
