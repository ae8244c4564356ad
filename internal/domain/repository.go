package domain

import (
	"context"
	"time"
)

// Tx — транзакционная сессия: выдаёт репозитории, работающие в рамках
// одной транзакции. Компоненты получают Tx явно и не тянутся к общему пулу.
type Tx interface {
	Orders() OrderRepository
	Inventory() InventoryLedger
	Payments() PaymentRepository
	Carts() CartRepository
	Timeline() TimelineRepository
}

// Store открывает транзакции. Ошибка из fn откатывает транзакцию целиком:
// частично применённых переходов не бывает.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// InventoryLedger — единственный писатель складских счётчиков.
// Все операции — одиночные условные обновления без явных блокировок:
// писатель либо успевает одним атомарным действием, либо видит нулевой
// эффект и трактует его как сигнал, а не как повод для глобальной синхронизации.
type InventoryLedger interface {
	// CreateProduct сохраняет новый товар.
	CreateProduct(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, productID string) (Product, error)
	// Reserve увеличивает reserved на qty, только если stock - reserved >= qty.
	// Нулевой эффект означает нехватку остатка: ErrInsufficientStock.
	Reserve(ctx context.Context, productID string, qty int32) error
	// Release уменьшает reserved на qty, только если reserved >= qty.
	// Нулевой эффект не фатален — конкурентный актор уже снял резерв;
	// возвращается released=false.
	Release(ctx context.Context, productID string, qty int32) (released bool, err error)
	// Commit уменьшает stock и reserved на qty одним действием, только если
	// reserved >= qty. Нулевой эффект — ErrConcurrencyLost.
	Commit(ctx context.Context, productID string, qty int32) error
}

// OrderRepository — хранилище заказов. Статус меняется только через
// UpdateStatus: условное обновление со старым статусом в WHERE служит CAS.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя, новые первыми.
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]Order, error)
	// UpdateStatus атомарно меняет статус from → to и записывает expiresAt
	// (nil очищает поле). Нулевой эффект — ErrConcurrencyLost: статус уже
	// изменил другой актор.
	UpdateStatus(ctx context.Context, id string, from, to OrderStatus, expiresAt *time.Time) error
	// SetPaymentIntent сохраняет идентификатор intent у заказа.
	SetPaymentIntent(ctx context.Context, id, intentID string) error
	// Delete жёстко удаляет заказ вместе с позициями.
	Delete(ctx context.Context, id string) error
	// DeleteLine удаляет позицию; remaining — сколько позиций осталось.
	DeleteLine(ctx context.Context, orderID, lineID string) (remaining int, err error)
	// ListExpiredAwaiting возвращает идентификаторы заказов в awaiting_payment
	// с истёкшим expires_at, не более limit.
	ListExpiredAwaiting(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// PaymentRepository — хранилище платёжных исходов. Уникальный индекс по
// external_id — финальный страховочный механизм идемпотентности.
type PaymentRepository interface {
	// Insert сохраняет платёж; нарушение уникальности external_id
	// возвращается как ErrAlreadyProcessed.
	Insert(ctx context.Context, payment Payment) error
	// GetByExternalID возвращает платёж по внешнему идентификатору.
	GetByExternalID(ctx context.Context, externalID string) (Payment, error)
	// ListByOrder возвращает платёжные попытки заказа, новые первыми.
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}

// CartRepository — хранилище строк корзины.
type CartRepository interface {
	// Create сохраняет новую строку корзины.
	Create(ctx context.Context, line CartLine) error
	// ActiveLines возвращает активные строки корзины покупателя.
	ActiveLines(ctx context.Context, buyerID string) ([]CartLine, error)
	// Deactivate мягко выключает строки покупателя по товарам и обнуляет
	// их количество: конвертация в заказ потребляет количество из корзины.
	Deactivate(ctx context.Context, buyerID string, productIDs []string) error
	// Merge добавляет qty к строке покупателя по товару (активной или нет),
	// активируя её; при отсутствии создаёт новую активную строку.
	Merge(ctx context.Context, buyerID, productID string, qty int32) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}
