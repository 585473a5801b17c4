package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего email клиента.
	ErrEmailRequired = errors.New("email is required")
	// Ошибка отсутствующего имени (клиента или товара).
	ErrNameRequired = errors.New("name is required")
	// Ошибка отсутствующего SKU товара.
	ErrSKURequired = errors.New("sku is required")
	// Ошибка отрицательной цены каталога.
	ErrPriceNegative = errors.New("price_cents must be non-negative")
	// ErrCustomerNotFound возвращается, если клиент не найден в репозитории.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrEmailTaken возвращается при нарушении уникальности email клиента.
	ErrEmailTaken = errors.New("email already exists")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrSKUTaken возвращается при нарушении уникальности SKU товара.
	ErrSKUTaken = errors.New("sku already exists")
	// ErrAmountMismatch — денежные поля заказа не сходятся с суммой позиций.
	ErrAmountMismatch = errors.New("order totals do not match items sum")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrReservationNotFound возвращается, если бронирование не найдено.
	ErrReservationNotFound = errors.New("reservation not found")

	// Ошибки нормализации позиций заказа.

	// ErrInvalidProductInItems — хотя бы один productId из запроса не существует в каталоге.
	ErrInvalidProductInItems = errors.New("invalid product in items")
	// ErrProductInactive — товар снят с продажи, заказывать его нельзя.
	ErrProductInactive = errors.New("product is inactive")
	// ErrProductPriceMissing — у товара нет цены, которую можно заморозить.
	ErrProductPriceMissing = errors.New("product price missing")
	// ErrInvalidUnitCents — замороженная цена позиции не является неотрицательным целым.
	ErrInvalidUnitCents = errors.New("unit_cents must be a non-negative integer")
	// ErrInvalidQty — количество в позиции не является положительным целым.
	ErrInvalidQty = errors.New("qty must be a positive integer")
	// ErrInvalidCustomerOrProduct — нарушение внешнего ключа при записи заказа.
	ErrInvalidCustomerOrProduct = errors.New("invalid customer or product reference")

	// ErrInvalidStatusTransition — попытка запрещённого перехода статуса заказа.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// Ошибки бронирований.

	// ErrInvalidCustomer — нарушение внешнего ключа на клиента при записи бронирования.
	ErrInvalidCustomer = errors.New("invalid customer reference")
	// ErrStartAfterEnd — интервал бронирования задан наоборот или пуст.
	ErrStartAfterEnd = errors.New("startAt must be before endAt")
	// ErrPartySizeInvalid — размер группы должен быть положительным.
	ErrPartySizeInvalid = errors.New("party_size must be greater than zero")
	// ErrReservationStatusInvalid — неподдерживаемый статус бронирования.
	ErrReservationStatusInvalid = errors.New("unsupported reservation status")
	// ErrOverlappingReservation — интервал пересекается с активным бронированием клиента.
	ErrOverlappingReservation = errors.New("overlapping reservation")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки идемпотентной обработки запросов.

	// ErrIdempotencyInProgress — запрос с этим ключом ещё обрабатывается.
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is in progress")
	// ErrIdempotencyMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyNotFound — записи по ключу нет или она истекла.
	ErrIdempotencyNotFound = errors.New("idempotency record not found")
)

// ItemError привязывает ошибку нормализации к конкретному товару,
// чтобы API мог сообщить вызывающему оскорбивший productId.
type ItemError struct {
	ProductID string
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: product %s", e.Err, e.ProductID)
}

func (e *ItemError) Unwrap() error { return e.Err }

// NewItemError оборачивает sentinel-ошибку идентификатором товара.
func NewItemError(err error, productID string) *ItemError {
	return &ItemError{ProductID: productID, Err: err}
}

// TransitionError сообщает, какой именно переход статуса был отклонён.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Unwrap позволяет различать ошибку через errors.Is(err, ErrInvalidStatusTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidStatusTransition }

// IsConflict проверяет, относится ли ошибка к бизнес-конфликтам (ответ 409),
// а не к инфраструктурным сбоям.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrOverlappingReservation) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrSKUTaken)
}
