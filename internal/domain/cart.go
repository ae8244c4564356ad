package domain

import "time"

// CartLine — позиция корзины покупателя.
// При конвертации корзины в заказ строка мягко деактивируется; при снятии
// резерва с заказа количества возвращаются обратно через CartReactivator.
type CartLine struct {
	ID        string
	BuyerID   string
	ProductID string
	Qty       int32
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность полей строки корзины.
func (c *CartLine) Validate() []error {
	var errs []error

	if c.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if c.ProductID == "" {
		errs = append(errs, ErrProductNotFound)
	}
	if c.Qty <= 0 {
		errs = append(errs, ErrQtyInvalid)
	}

	return errs
}

// ReleasedLine — пара (товар, количество), возвращаемая в корзину при release.
type ReleasedLine struct {
	ProductID string
	Qty       int32
}
