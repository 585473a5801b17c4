package domain

import "time"

// Product — позиция каталога. PriceCents может меняться со временем;
// исторические заказы хранят собственную замороженную цену и изменений
// каталога не видят.
type Product struct {
	ID string
	// SKU уникален в пределах каталога.
	SKU         string
	Name        string
	Description string
	// PriceCents — текущая цена в минимальных денежных единицах.
	PriceCents int64
	// Active управляет доступностью товара для новых заказов.
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.SKU == "" {
		errs = append(errs, ErrSKURequired)
	}
	if p.Name == "" {
		errs = append(errs, ErrNameRequired)
	}
	if p.PriceCents < 0 {
		errs = append(errs, ErrPriceNegative)
	}

	return errs
}
