package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/cart"
	"github.com/rmoraes/braseiro/pkg/bind"
	"github.com/rmoraes/braseiro/pkg/response"
)

type CartController struct {
	cart *cart.Model
}

func NewCartController(model *cart.Model) *CartController {
	return &CartController{cart: model}
}

// Show returns the live cart with its payable total.
func (c *CartController) Show(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]interface{}{
		"items": c.cart.Entries(),
		"total": c.cart.Total(),
	})
}

type addItemInput struct {
	ProductID uint `json:"productId" validate:"required"`
	Quantity  int  `json:"quantity"  validate:"required,gte=1"`
}

func (c *CartController) Add(w http.ResponseWriter, r *http.Request) {
	var in addItemInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := c.cart.Add(r.Context(), in.ProductID, in.Quantity); err != nil {
		writeCartError(w, err)
		return
	}
	response.Success(w, c.cart.Entries())
}

type setQuantityInput struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

func (c *CartController) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var in setQuantityInput
	if errs, berr := bind.JSON(r, &in); berr != nil {
		response.Error(w, http.StatusBadRequest, berr.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := c.cart.SetQuantity(r.Context(), uint(id), in.Quantity); err != nil {
		writeCartError(w, err)
		return
	}
	response.Success(w, c.cart.Entries())
}

// Cancel empties the cart, returning every reservation to stock.
func (c *CartController) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := c.cart.CancelAll(r.Context()); err != nil {
		writeCartError(w, err)
		return
	}
	response.Success(w, c.cart.Entries())
}

type checkoutInput struct {
	CustomerName    string  `json:"customerName"    validate:"required,min=2,max=255"`
	CustomerPhone   string  `json:"customerPhone"   validate:"nullable,max=32"`
	CustomerAddress string  `json:"customerAddress" validate:"nullable,max=512"`
	PaymentMethod   string  `json:"paymentMethod"   validate:"required,in=cash,card,pix"`
	ChangeRequested float64 `json:"changeRequested" validate:"nullable,numeric,gte=0"`
	DeliveryType    string  `json:"deliveryType"    validate:"required,in=delivery,pickup"`
	DeliveryFee     float64 `json:"deliveryFee"     validate:"nullable,numeric,gte=0"`
	Notes           string  `json:"notes"           validate:"nullable,max=1000"`
}

// Checkout turns the cart into an order.
func (c *CartController) Checkout(w http.ResponseWriter, r *http.Request) {
	var in checkoutInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	order, err := c.cart.Checkout(r.Context(), cart.CheckoutInput{
		Customer: models.Customer{
			Name:    in.CustomerName,
			Phone:   in.CustomerPhone,
			Address: in.CustomerAddress,
		},
		PaymentMethod:   in.PaymentMethod,
		ChangeRequested: in.ChangeRequested,
		DeliveryType:    in.DeliveryType,
		DeliveryFee:     in.DeliveryFee,
		Notes:           in.Notes,
	})
	if err != nil {
		writeCartError(w, err)
		return
	}
	response.Created(w, order)
}

// writeCartError maps cart-model errors onto HTTP statuses.
func writeCartError(w http.ResponseWriter, err error) {
	var stockErr *cart.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		response.ErrorWithData(w, http.StatusConflict, "insufficient stock", map[string]interface{}{
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.Is(err, cart.ErrUnknownProduct), errors.Is(err, cart.ErrNotInCart):
		response.NotFound(w, err.Error())
	case errors.Is(err, cart.ErrProductInactive),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrEmptyCart):
		response.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}
