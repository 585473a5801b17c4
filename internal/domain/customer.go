package domain

import "time"

// Customer — покупатель. Идентичность неизменна после создания,
// профильные поля можно править.
type Customer struct {
	ID string
	// Email уникален в пределах всей базы клиентов.
	Email     string
	Name      string
	Phone     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error

	if c.Email == "" {
		errs = append(errs, ErrEmailRequired)
	}
	if c.Name == "" {
		errs = append(errs, ErrNameRequired)
	}

	return errs
}
