package models

// Promotion is a time-boxed price adjustment on a product.
// Type is either "percent" (Value is a percentage off the list price)
// or "fixed" (Value replaces the list price outright).
type Promotion struct {
	Active bool    `json:"active"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
}

// Product is a catalogue row. Stock is owned by the catalogue; cart
// entries reference products by ID and never carry their own copy.
type Product struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Name      string    `gorm:"size:255;not null"   json:"name"`
	Price     float64   `gorm:"not null;index"      json:"price"`
	Category  string    `gorm:"size:100;index"      json:"category"`
	Stock     int       `gorm:"not null;default:0"  json:"stock"`
	MinStock  int       `gorm:"not null;default:0"  json:"minStock"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	Promotion Promotion `gorm:"embedded;embeddedPrefix:promo_" json:"promotion"`
}

func (Product) TableName() string { return "products" }

// EffectivePrice is the price a unit sells for right now, with any
// active promotion applied.
func (p Product) EffectivePrice() float64 {
	if !p.Promotion.Active {
		return p.Price
	}
	switch p.Promotion.Type {
	case "percent":
		return p.Price * (1 - p.Promotion.Value/100)
	case "fixed":
		return p.Promotion.Value
	default:
		return p.Price
	}
}

// LowStock reports whether the product is at or under its reorder threshold.
func (p Product) LowStock() bool { return p.Stock <= p.MinStock }
