package models

import "time"

// CartKey is the fixed primary key of the single live cart record.
const CartKey = "current"

// CartEntry is one reserved line in the live cart. ListPrice and
// EffectivePrice are both frozen at add time so checkout pricing never
// depends on the live catalogue; the entry references its product by ID
// only — stock arithmetic happens in the cart model.
type CartEntry struct {
	ProductID         uint       `json:"productId"`
	Name              string     `json:"name"`
	Quantity          int        `json:"quantity"`
	ListPrice         float64    `json:"listPrice"`
	EffectivePrice    float64    `json:"effectivePrice"`
	PromotionSnapshot *Promotion `json:"promotionSnapshot,omitempty"`
}

// Subtotal is the line total for the entry.
func (e CartEntry) Subtotal() float64 {
	return e.EffectivePrice * float64(e.Quantity)
}

// CartRecord is how the structured backend persists the whole cart:
// a single row under CartKey holding the serialized entry list.
type CartRecord struct {
	Key       string      `gorm:"primaryKey;size:32" json:"key"`
	Items     []CartEntry `gorm:"serializer:json"    json:"items"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (CartRecord) TableName() string { return "cart_records" }
