package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствующего или слишком короткого адреса доставки.
	ErrShippingAddressInvalid = errors.New("shipping address must be at least 10 characters")
	// Ошибка пустой корзины при создании заказа.
	ErrCartEmpty = errors.New("cart has no active lines")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQtyInvalid = errors.New("qty must be greater than zero")
	// Ошибка, если цена позиции не положительная.
	ErrPriceInvalid = errors.New("unit price must be greater than zero")
	// Ошибка пустого наименования позиции для платёжного провайдера.
	ErrTitleRequired = errors.New("line title is required")
	// ErrInsufficientStock — доступного остатка не хватает для резервирования.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrGatewayUnavailable — платёжный шлюз недоступен или вернул неопределённый ответ.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrAlreadyProcessed — событие с таким внешним идентификатором уже применено.
	// Это не сбой, а штатный идемпотентный no-op.
	ErrAlreadyProcessed = errors.New("payment already processed")
	// ErrConcurrencyLost — условное обновление не затронуло ни одной строки
	// вне ожидаемых идемпотентных случаев; операцию можно повторить.
	ErrConcurrencyLost = errors.New("concurrent update lost")
	// ErrInvalidTransition — переход между статусами запрещён таблицей переходов.
	ErrInvalidTransition = errors.New("order status transition is not allowed")
	// ErrForbidden — актор не имеет права на операцию.
	ErrForbidden = errors.New("actor is not allowed to perform this operation")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderLineNotFound возвращается, если позиция заказа не найдена.
	ErrOrderLineNotFound = errors.New("order line not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrPaymentNotFound возвращается, если платёж не найден (у нас или у шлюза).
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrSignatureInvalid — подпись webhook не прошла проверку.
	ErrSignatureInvalid = errors.New("webhook signature is invalid")
	// ErrUnknownOrderRef — внешняя ссылка события не указывает на существующий заказ.
	ErrUnknownOrderRef = errors.New("external reference does not resolve to an order")
	// ErrNoPaymentIntent — у заказа нет сохранённого intent для сверки со шлюзом.
	ErrNoPaymentIntent = errors.New("order has no payment intent")
	// Ошибка отсутствующего идентификатора заказа в платеже.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего внешнего идентификатора платежа.
	ErrExternalIDRequired = errors.New("external payment id is required")
	// Ошибка отрицательной суммы платежа.
	ErrAmountNegative = errors.New("payment amount must be non-negative")
)

// IsAlreadyProcessed проверяет, является ли ошибка идемпотентным no-op.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsConcurrencyLost проверяет, проиграла ли операция конкурентную гонку.
func IsConcurrencyLost(err error) bool {
	return errors.Is(err, ErrConcurrencyLost)
}

// IsValidation проверяет, относится ли ошибка к ошибкам валидации входных данных.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrBuyerRequired),
		errors.Is(err, ErrShippingAddressInvalid),
		errors.Is(err, ErrCartEmpty),
		errors.Is(err, ErrQtyInvalid),
		errors.Is(err, ErrPriceInvalid),
		errors.Is(err, ErrTitleRequired):
		return true
	default:
		return false
	}
}
