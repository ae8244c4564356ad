package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:              "order-1",
		BuyerID:         "buyer-1",
		Status:          domain.OrderStatusPending,
		ShippingAddress: "Tverskaya st. 1, Moscow",
		Lines: []domain.OrderLine{
			{
				ID:         "line-1",
				OrderID:    "order-1",
				ProductID:  "product-1",
				Title:      "Ceramic mug",
				Qty:        5,
				PriceMinor: 100,
				CreatedAt:  now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
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
			name: "short address",
			mut: func(o *domain.Order) {
				o.ShippingAddress = "short"
			},
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
			},
		},
		{
			name: "zero qty",
			mut: func(o *domain.Order) {
				o.Lines[0].Qty = 0
			},
		},
		{
			name: "zero price",
			mut: func(o *domain.Order) {
				o.Lines[0].PriceMinor = 0
			},
		},
		{
			name: "no title",
			mut: func(o *domain.Order) {
				o.Lines[0].Title = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if errs := order.ValidateInvariants(); len(errs) == 0 {
				t.Fatalf("expected validation errors, got none")
			}
		})
	}
}

func TestOrderAmountMinor(t *testing.T) {
	order := makeOrder()
	order.Lines = append(order.Lines, domain.OrderLine{
		ID: "line-2", ProductID: "product-2", Title: "Tea pot", Qty: 2, PriceMinor: 250,
	})

	if got := order.AmountMinor(); got != 1000 {
		t.Fatalf("expected amount 1000, got %d", got)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusAwaitingPayment, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelledByAdmin, true},
		{domain.OrderStatusPending, domain.OrderStatusPaid, false},
		{domain.OrderStatusAwaitingPayment, domain.OrderStatusPaid, true},
		{domain.OrderStatusAwaitingPayment, domain.OrderStatusRejected, true},
		{domain.OrderStatusAwaitingPayment, domain.OrderStatusCancelledByGateway, true},
		{domain.OrderStatusAwaitingPayment, domain.OrderStatusError, true},
		{domain.OrderStatusAwaitingPayment, domain.OrderStatusExpired, true},
		{domain.OrderStatusAwaitingPayment, domain.OrderStatusShipped, false},
		{domain.OrderStatusError, domain.OrderStatusPaid, true},
		{domain.OrderStatusError, domain.OrderStatusCancelledByAdmin, true},
		{domain.OrderStatusError, domain.OrderStatusRejected, false},
		{domain.OrderStatusPaid, domain.OrderStatusShipped, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusDelivered, domain.OrderStatusShipped, false},
		{domain.OrderStatusRejected, domain.OrderStatusPaid, false},
		{domain.OrderStatusExpired, domain.OrderStatusAwaitingPayment, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatusHoldsReservation(t *testing.T) {
	holding := map[domain.OrderStatus]bool{
		domain.OrderStatusAwaitingPayment: true,
		domain.OrderStatusError:           true,
	}

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusAwaitingPayment,
		domain.OrderStatusPaid,
		domain.OrderStatusRejected,
		domain.OrderStatusCancelledByGateway,
		domain.OrderStatusCancelledByAdmin,
		domain.OrderStatusError,
		domain.OrderStatusExpired,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		if got := status.HoldsReservation(); got != holding[status] {
			t.Fatalf("%s: HoldsReservation = %v", status, got)
		}
	}
}

func TestOrderStatusValid(t *testing.T) {
	if !domain.OrderStatusAwaitingPayment.Valid() {
		t.Fatal("awaiting_payment must be a valid status")
	}
	if domain.OrderStatus("unknown").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}
