package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// customerRepositoryInMemory — простая in-memory реализация CustomerRepository.
type customerRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Customer
}

// NewCustomerRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewCustomerRepository() domain.CustomerRepository {
	return &customerRepositoryInMemory{items: make(map[string]domain.Customer)}
}

// Create сохраняет клиента, охраняя уникальность email.
func (r *customerRepositoryInMemory) Create(customer domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, customer.Email) {
			return domain.ErrEmailTaken
		}
	}
	r.items[customer.ID] = customer
	return nil
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepositoryInMemory) Get(id string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// List фильтрует по подстроке в name/email и режет страницу.
func (r *customerRepositoryInMemory) List(q string, page domain.Page) ([]domain.Customer, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q = strings.ToLower(strings.TrimSpace(q))
	result := make([]domain.Customer, 0, len(r.items))
	for _, customer := range r.items {
		if q != "" &&
			!strings.Contains(strings.ToLower(customer.Name), q) &&
			!strings.Contains(strings.ToLower(customer.Email), q) {
			continue
		}
		result = append(result, customer)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	total := len(result)
	return slicePage(result, page), total, nil
}

// slicePage применяет skip/take к отсортированному срезу.
func slicePage[T any](items []T, page domain.Page) []T {
	skip := page.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]

	if page.Take > 0 && len(items) > page.Take {
		items = items[:page.Take]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
