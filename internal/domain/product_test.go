package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func makeProduct() domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:                 "product-1",
		Name:               "Чайник",
		Description:        "Эмалированный, 2 литра",
		Category:           "kitchen",
		PriceMinor:         10000,
		OriginalPriceMinor: 10000,
		Stock:              5,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestProductValidate_Ok(t *testing.T) {
	product := makeProduct()
	if errs := product.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestProductValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(p *domain.Product)
	}{
		{name: "no name", mut: func(p *domain.Product) { p.Name = "" }},
		{name: "no description", mut: func(p *domain.Product) { p.Description = "" }},
		{name: "no category", mut: func(p *domain.Product) { p.Category = "" }},
		{name: "negative price", mut: func(p *domain.Product) { p.PriceMinor = -1 }},
		{name: "negative stock", mut: func(p *domain.Product) { p.Stock = -1 }},
		{
			name: "discount percent out of range",
			mut: func(p *domain.Product) {
				p.Discount = &domain.Discount{Percentage: 120, IsActive: true}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			product := makeProduct()
			tc.mut(&product)
			if len(product.Validate()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestDiscountValidate_Period(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)

	d := domain.Discount{Percentage: 10, StartDate: &start, EndDate: &end, IsActive: true}
	if len(d.Validate()) == 0 {
		t.Fatal("expected validation error for inverted period")
	}
}
