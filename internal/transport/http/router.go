package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vladislavdragonenkov/shopcore/internal/health"
)

const requestTimeout = 15 * time.Second

// NewRouter собирает маршруты API, платёжного webhook и служебных ручек.
func NewRouter(handler *Handler, healthHandler *health.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/products", handler.createProduct)
		r.Get("/products/{id}", handler.getProduct)

		r.Get("/cart", handler.listCart)
		r.Post("/cart/items", handler.addToCart)

		r.Post("/orders", handler.createOrder)
		r.Get("/orders", handler.listOrders)
		r.Get("/orders/{id}", handler.getOrder)
		r.Delete("/orders/{id}", handler.cancelOrder)
		r.Delete("/orders/{id}/lines/{lineID}", handler.deleteLine)
		r.Patch("/orders/{id}/status", handler.updateStatus)
		r.Get("/orders/{id}/timeline", handler.timeline)

		r.Post("/orders/{id}/payment", handler.initiatePayment)
		r.Post("/orders/{id}/payment/verify", handler.verifyPayment)
	})

	r.Post("/webhooks/payments", handler.paymentWebhook)

	if healthHandler != nil {
		r.Get("/healthz", healthHandler.ServeHTTP)
		r.Get("/livez", health.LivenessHandler)
		r.Get("/readyz", healthHandler.ReadinessHandler)
	}

	return r
}

// NewServer создаёт HTTP-сервер с таймаутами.
func NewServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
