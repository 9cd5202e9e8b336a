package models

import "time"

// DayKeyLayout is the calendar-day key format used by the exact-date
// order lookup.
const DayKeyLayout = "2006-01-02"

// Customer identifies who placed an order.
type Customer struct {
	Name    string `gorm:"size:255" json:"name"`
	Phone   string `gorm:"size:32"  json:"phone"`
	Address string `gorm:"size:512" json:"address,omitempty"`
}

// OrderItem is one line of an order. UnitPrice is the effective price
// frozen when the item was added to the cart.
type OrderItem struct {
	ProductID         uint       `json:"productId"`
	Name              string     `json:"name"`
	UnitPrice         float64    `json:"unitPrice"`
	Quantity          int        `json:"quantity"`
	PromotionSnapshot *Promotion `json:"promotionSnapshot,omitempty"`
}

// Pricing is the money breakdown of an order.
type Pricing struct {
	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `gorm:"index" json:"total"`
}

// Payment records how the customer pays.
type Payment struct {
	Method          string  `gorm:"size:32;index" json:"method"`
	ChangeRequested float64 `json:"changeRequested,omitempty"`
}

// Delivery records how the order leaves the shop: "delivery" or "pickup".
type Delivery struct {
	Type string `gorm:"size:16;index" json:"type"`
}

// Order is immutable once persisted: it is created at checkout, never
// edited, and removed only by clear-all or a restore-replace.
type Order struct {
	ID           uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	SequentialID int         `gorm:"index;not null" json:"sequentialId"`
	Timestamp    time.Time   `gorm:"index;not null" json:"timestamp"`
	DayKey       string      `gorm:"size:10;index"  json:"-"`
	Customer     Customer    `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Items        []OrderItem `gorm:"serializer:json" json:"items"`
	Pricing      Pricing     `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	Payment      Payment     `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Delivery     Delivery    `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery"`
	Notes        string      `gorm:"type:text" json:"notes,omitempty"`
}

func (Order) TableName() string { return "orders" }

// Day returns the calendar-day key for the order's timestamp.
func (o Order) Day() string { return o.Timestamp.Format(DayKeyLayout) }
