package cart

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Reactivator возвращает позиции снятого резерва обратно в корзину покупателя.
// Работает внутри той же транзакции, что и release: либо резерв снят и корзина
// восстановлена, либо не произошло ничего.
type Reactivator struct {
	logger *log.Entry
}

// NewReactivator создаёт реактиватор корзины.
func NewReactivator(logger *log.Entry) *Reactivator {
	if logger == nil {
		logger = log.New().WithField("component", "cart-reactivator")
	}
	return &Reactivator{logger: logger}
}

// Restore сливает освобождённые позиции в корзину покупателя.
// Существующая строка по товару получает добавку количества и активируется,
// отсутствующая создаётся заново.
func (r *Reactivator) Restore(ctx context.Context, tx domain.Tx, buyerID string, lines []domain.ReleasedLine) error {
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		if err := tx.Carts().Merge(ctx, buyerID, line.ProductID, line.Qty); err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"buyer_id":   buyerID,
				"product_id": line.ProductID,
			}).Error("restore cart line failed")
			return err
		}
	}
	return nil
}
