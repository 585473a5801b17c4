package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/metrics"
	"github.com/vladislavdragonenkov/cbs/internal/service/orders"
	"github.com/vladislavdragonenkov/cbs/internal/service/reservations"
)

const requestTimeout = 30 * time.Second

// Server связывает HTTP-обработчики с сервисами и хранилищами.
// Поля idempotency и metrics опциональны: без них сервер работает,
// просто не дедуплицирует запросы и не считает метрики.
type Server struct {
	customers    domain.CustomerRepository
	products     domain.ProductRepository
	orders       *orders.Service
	reservations *reservations.Service
	idempotency  domain.IdempotencyRepository
	metrics      *metrics.CommerceMetrics
	logger       *log.Entry
	apiKey       string
}

// Deps перечисляет зависимости HTTP-сервера.
type Deps struct {
	Customers    domain.CustomerRepository
	Products     domain.ProductRepository
	Orders       *orders.Service
	Reservations *reservations.Service
	Idempotency  domain.IdempotencyRepository
	Metrics      *metrics.CommerceMetrics
	Logger       *log.Entry
	APIKey       string
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Server{
		customers:    deps.Customers,
		products:     deps.Products,
		orders:       deps.Orders,
		reservations: deps.Reservations,
		idempotency:  deps.Idempotency,
		metrics:      deps.Metrics,
		logger:       logger,
		apiKey:       deps.APIKey,
	}
}

// Router собирает chi-маршрутизатор со всеми ручками API.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(APIKeyGate(s.apiKey))

		api.Route("/customers", func(r chi.Router) {
			r.Post("/", s.createCustomer)
			r.Get("/", s.listCustomers)
		})
		api.Route("/products", func(r chi.Router) {
			r.Post("/", s.createProduct)
			r.Get("/", s.listProducts)
		})
		api.Route("/orders", func(r chi.Router) {
			r.Post("/", s.createOrder)
			r.Get("/", s.listOrders)
			r.Get("/{id}", s.getOrder)
			r.Patch("/{id}", s.patchOrderStatus)
			r.Get("/{id}/timeline", s.getOrderTimeline)
		})
		api.Route("/reservations", func(r chi.Router) {
			r.Post("/", s.createReservation)
			r.Get("/", s.listReservations)
			r.Get("/{id}", s.getReservation)
		})
	})

	return router
}
