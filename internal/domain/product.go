package domain

import "time"

// Product хранит складские счётчики одного товара.
// Инвариант: 0 <= Reserved <= Stock в любой наблюдаемый момент.
// Счётчики меняются только атомарными операциями InventoryLedger.
type Product struct {
	ID    string
	Title string
	// PriceMinor — прайсовая цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// PromoPriceMinor — акционная цена; 0 означает отсутствие акции.
	PromoPriceMinor int64
	// Stock — физически принадлежащие нам единицы.
	Stock int32
	// Reserved — единицы, закреплённые за незавершёнными заказами.
	Reserved  int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available возвращает остаток, который можно предложить новым резервированиям.
func (p *Product) Available() int32 {
	return p.Stock - p.Reserved
}

// EffectivePriceMinor возвращает цену для снимка в заказе:
// акционную, если она задана и ниже прайсовой.
func (p *Product) EffectivePriceMinor() int64 {
	if p.PromoPriceMinor > 0 && p.PromoPriceMinor < p.PriceMinor {
		return p.PromoPriceMinor
	}
	return p.PriceMinor
}

// Validate проверяет корректность полей товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.Title == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if p.PriceMinor <= 0 {
		errs = append(errs, ErrPriceInvalid)
	}
	if p.Stock < 0 || p.Reserved < 0 || p.Reserved > p.Stock {
		errs = append(errs, ErrInsufficientStock)
	}

	return errs
}
