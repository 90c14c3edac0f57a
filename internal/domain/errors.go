package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка неполного адреса доставки.
	ErrAddressIncomplete = errors.New("shipping address is incomplete")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method is not supported")
	// Ошибка неподдерживаемого статуса заказа.
	ErrOrderStatusInvalid = errors.New("invalid order status")

	// ErrProductNameRequired и соседние ошибки — валидация карточки товара.
	ErrProductNameRequired        = errors.New("product name is required")
	ErrProductDescriptionRequired = errors.New("product description is required")
	ErrProductCategoryRequired    = errors.New("product category is required")
	ErrProductPriceNegative       = errors.New("product price must be non-negative")
	ErrProductStockNegative       = errors.New("product stock must be non-negative")
	// Ошибка диапазона процента скидки.
	ErrDiscountPercentInvalid = errors.New("discount percentage must be between 0 and 100")
	// Ошибка периода скидки (end раньше start).
	ErrDiscountPeriodInvalid = errors.New("discount end date is before start date")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrUserNotFound возвращается, если аккаунт не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrProductVersionConflict сигнализирует о конфликте версий товара.
	ErrProductVersionConflict = errors.New("product version conflict")
	// ErrEmailTaken возвращается при регистрации на занятый email.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInsufficientStock — запрошенное количество превышает доступный сток.
	// Конкретный товар указывается через InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNotAuthorized — у актора нет прав на запрошенную операцию.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrOrderNotCancellable — статус заказа не допускает отмену.
	ErrOrderNotCancellable = errors.New("order cannot be cancelled at this stage")
	// ErrStorageUnavailable — транзиентная ошибка хранилища; вызывающая
	// сторона может повторить операцию целиком.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Ошибки валидации аккаунтов.
	ErrUserNameRequired   = errors.New("user name is required")
	ErrEmailInvalid       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrNoFieldsToUpdate   = errors.New("no fields provided to update")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Ошибки механизма идемпотентности.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError уточняет, для какого товара не хватило стока
// и сколько единиц было доступно на момент проверки.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is позволяет сопоставлять ошибку с сентинелом ErrInsufficientStock через errors.Is.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsNotFound проверяет, относится ли ошибка к классу "сущность не найдена".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrProductVersionConflict)
}
