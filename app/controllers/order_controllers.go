package controllers

import (
	"net/http"
	"time"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/response"
)

type OrderController struct {
	storage *store.Manager
}

func NewOrderController(storage *store.Manager) *OrderController {
	return &OrderController{storage: storage}
}

// Index lists order history newest-first. Query params:
//
//	date=YYYY-MM-DD        exact calendar day (wins over everything)
//	from=RFC3339 to=RFC3339  explicit range (wins over period)
//	period=today|week|month
//	payment=cash|card|pix
//	delivery=delivery|pickup
func (c *OrderController) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.OrderFilter{
		Period:        q.Get("period"),
		PaymentMethod: q.Get("payment"),
		DeliveryType:  q.Get("delivery"),
	}

	if raw := q.Get("date"); raw != "" {
		day, err := time.Parse(models.DayKeyLayout, raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &day
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		filter.To = &to
	}

	orders, err := c.storage.QueryOrders(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(w, orders)
}
