package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type checkoutInput struct {
	Name     string  `json:"name"     validate:"required,min=2,max=100"`
	Email    string  `json:"email"    validate:"nullable,email"`
	Method   string  `json:"method"   validate:"required,in=cash,card,pix"`
	Quantity int     `json:"quantity" validate:"required,gte=1,lte=99"`
	Fee      float64 `json:"fee"      validate:"nullable,numeric,between=0,500"`
}

func TestStructValid(t *testing.T) {
	in := checkoutInput{Name: "Maria", Email: "maria@example.com", Method: "pix", Quantity: 2, Fee: 8.5}
	errs := Struct(&in)
	assert.False(t, HasErrors(errs))
}

func TestRequired(t *testing.T) {
	in := checkoutInput{Method: "cash", Quantity: 1}
	errs := Struct(&in)
	assert.True(t, HasErrors(errs))
	assert.Contains(t, errs, "name")
}

func TestEmailRule(t *testing.T) {
	in := checkoutInput{Name: "Maria", Email: "not-an-email", Method: "cash", Quantity: 1}
	errs := Struct(&in)
	assert.Contains(t, errs, "email")
}

func TestNullableSkipsEmpty(t *testing.T) {
	in := checkoutInput{Name: "Maria", Method: "card", Quantity: 1}
	errs := Struct(&in)
	assert.False(t, HasErrors(errs))
}

func TestInRule(t *testing.T) {
	in := checkoutInput{Name: "Maria", Method: "check", Quantity: 1}
	errs := Struct(&in)
	assert.Equal(t, "The selected method is invalid.", errs["method"])
}

func TestRangeRules(t *testing.T) {
	in := checkoutInput{Name: "Maria", Method: "cash", Quantity: 120}
	errs := Struct(&in)
	assert.Contains(t, errs, "quantity")

	in = checkoutInput{Name: "Maria", Method: "cash", Quantity: 1, Fee: 900}
	errs = Struct(&in)
	assert.Contains(t, errs, "fee")
}

func TestSplitRulesKeepsMultiValueParams(t *testing.T) {
	rules := splitRules("required,in=cash,card,pix,max=10")
	assert.Equal(t, []string{"required", "in=cash,card,pix", "max=10"}, rules)
}

func TestFirstFailingRuleWins(t *testing.T) {
	in := checkoutInput{Name: "M", Method: "cash", Quantity: 1}
	errs := Struct(&in)
	assert.Equal(t, "The name must be at least 2 characters.", errs["name"])
}
