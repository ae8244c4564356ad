package domain

// Role задаёт роль аутентифицированного актора.
type Role string

const (
	// RoleBuyer — покупатель; управляет только собственными заказами.
	RoleBuyer Role = "buyer"
	// RoleAdmin — оператор; двигает оплаченные заказы и разбирает статус error.
	RoleAdmin Role = "admin"
)

// Actor — явное значение аутентифицированного актора.
// Передаётся аргументом в каждый use case; ни один компонент не читает
// идентичность из ambient-контекста запроса.
type Actor struct {
	ID   string
	Role Role
}

// Admin сообщает, обладает ли актор правами оператора.
func (a Actor) Admin() bool {
	return a.Role == RoleAdmin
}

// CanManageOrder проверяет право актора распоряжаться заказом.
func (a Actor) CanManageOrder(order *Order) bool {
	if a.Admin() {
		return true
	}
	return a.ID != "" && a.ID == order.BuyerID
}
