package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:      "order-1",
		BuyerID: "buyer-1",
		Status:  domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{
				ID:         "item-1",
				ProductID:  "product-1",
				Qty:        5,
				PriceMinor: 100,
				CreatedAt:  now,
			},
		},
		ShippingAddress: domain.ShippingAddress{
			Street:     "Невский проспект, 1",
			City:       "Санкт-Петербург",
			PostalCode: "191186",
			Country:    "RU",
		},
		PaymentInfo: domain.PaymentInfo{
			Method: domain.PaymentMethodCard,
			Status: domain.PaymentStatusPaid,
		},
		AmountMinor: 500,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no buyer",
			mut: func(o *domain.Order) {
				o.BuyerID = ""
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.AmountMinor = -1
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].PriceMinor = -5
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.AmountMinor = 999
			},
		},
		{
			name: "incomplete address",
			mut: func(o *domain.Order) {
				o.ShippingAddress.PostalCode = ""
			},
		},
		{
			name: "unknown payment method",
			mut: func(o *domain.Order) {
				o.PaymentInfo.Method = "barter"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderStatus_Cancellable(t *testing.T) {
	cancellable := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusProcessing}
	for _, s := range cancellable {
		if !s.Cancellable() {
			t.Fatalf("expected status %s to be cancellable", s)
		}
	}

	final := []domain.OrderStatus{
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	}
	for _, s := range final {
		if s.Cancellable() {
			t.Fatalf("expected status %s to reject cancellation", s)
		}
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	if domain.OrderStatus("returned").Valid() {
		t.Fatal("unexpected status must not be valid")
	}
	for _, s := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	} {
		if !s.Valid() {
			t.Fatalf("expected status %s to be valid", s)
		}
	}
}
