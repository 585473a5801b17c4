package domain

import "time"

// Page задаёт позиционную выборку списочных запросов.
// Take ограничивается хранилищем сверху (см. реализации).
type Page struct {
	Take int
	Skip int
}

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет нового клиента; ErrEmailTaken при дубликате email.
	Create(customer Customer) error
	// Get возвращает клиента или ErrCustomerNotFound.
	Get(id string) (Customer, error)
	// List возвращает страницу клиентов и общее число подходящих записей.
	// q фильтрует по подстроке в name или email.
	List(q string, page Page) ([]Customer, int, error)
}

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// Create сохраняет новый товар; ErrSKUTaken при дубликате SKU.
	Create(product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// GetBatch возвращает найденные товары по списку идентификаторов
	// одним обращением; отсутствующие просто не попадают в результат.
	GetBatch(ids []string) ([]Product, error)
	// List возвращает страницу каталога; q фильтрует по подстроке в name или sku.
	List(q string, page Page) ([]Product, int, error)
	// UpdatePrice меняет текущую каталожную цену товара.
	UpdatePrice(id string, priceCents int64) error
}

// OrderFilter ограничивает выборку заказов.
type OrderFilter struct {
	CustomerID   string
	Status       OrderStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	UpdatedSince *time.Time
	Page         Page
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет шапку заказа и все его позиции.
	// Конкурентный читатель не должен видеть частично записанный заказ.
	// ErrInvalidCustomerOrProduct — при нарушении ссылочной целостности.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// List возвращает страницу заказов и общее число подходящих записей.
	List(filter OrderFilter) ([]Order, int, error)
	// Save применяет обновление статуса с учётом optimistic locking.
	Save(order Order) error
}

// ReservationFilter ограничивает выборку бронирований.
type ReservationFilter struct {
	CustomerID string
	Status     ReservationStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       Page
}

// ReservationRepository описывает требования к хранилищу бронирований.
type ReservationRepository interface {
	// Create сохраняет бронирование. ErrInvalidCustomer — при неизвестном
	// клиенте; ErrOverlappingReservation — если exclusion-ограничение
	// хранилища отловило пересечение, проскочившее мимо проверки.
	Create(reservation Reservation) error
	// Get возвращает бронирование или ErrReservationNotFound.
	Get(id string) (Reservation, error)
	// List возвращает страницу бронирований и общее число подходящих записей.
	List(filter ReservationFilter) ([]Reservation, int, error)
	// FindOverlapping возвращает активные (PENDING/CONFIRMED) брони клиента,
	// пересекающиеся с полуоткрытым интервалом [startAt, endAt).
	FindOverlapping(customerID string, startAt, endAt time.Time) ([]Reservation, error)
}
