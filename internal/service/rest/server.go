package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/auth"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// Server — HTTP-обвязка над сервисами магазина.
type Server struct {
	auth        *auth.Service
	catalog     *catalog.Service
	orders      *order.Workflow
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// NewServer создаёт HTTP-слой. idempotency может быть nil:
// тогда заголовок Idempotency-Key игнорируется.
func NewServer(
	authSvc *auth.Service,
	catalogSvc *catalog.Service,
	orders *order.Workflow,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &Server{
		auth:        authSvc,
		catalog:     catalogSvc,
		orders:      orders,
		idempotency: idempotency,
		logger:      logger,
	}
}

// Router собирает маршруты API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты.
		r.Post("/users/register", s.handleRegister)
		r.Post("/users/login", s.handleLogin)
		r.Get("/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)

		// Маршруты аутентифицированных пользователей.
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/users/profile", s.handleGetProfile)
			r.Patch("/users/profile", s.handleUpdateProfile)

			r.Post("/orders", s.handlePlaceOrder)
			r.Get("/orders", s.handleListMyOrders)
			r.Get("/orders/{id}", s.handleGetOrder)
			r.Get("/orders/{id}/timeline", s.handleOrderTimeline)
			r.Post("/orders/{id}/cancel", s.handleCancelOrder)
		})

		// Админские маршруты.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(requireAdmin)

			r.Post("/products", s.handleAddProduct)
			r.Patch("/products/{id}", s.handleUpdateProduct)
			r.Delete("/products/{id}", s.handleRemoveProduct)
			r.Post("/products/{id}/restock", s.handleRestock)
			r.Put("/products/{id}/discount", s.handleApplyDiscount)
			r.Delete("/products/{id}/discount", s.handleRemoveDiscount)

			r.Get("/orders", s.handleListAllOrders)
			r.Patch("/orders/{id}/status", s.handleUpdateOrderStatus)
			r.Patch("/orders/{id}/cancel", s.handleAdminCancelOrder)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})

	return r
}
