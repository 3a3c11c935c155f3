// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// Metrics содержит счётчики жизненного цикла заказов и HTTP-метрики.
type Metrics struct {
	gatherer prometheus.Gatherer

	ordersCreated     prometheus.Counter
	orderTransitions  *prometheus.CounterVec
	credentialsIssued prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New регистрирует метрики в собственном реестре.
func New() *Metrics {
	return newWithRegistry(prometheus.NewRegistry())
}

func newWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: registry,
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sapataria_orders_created_total",
			Help: "Total number of orders created",
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sapataria_order_transitions_total",
			Help: "Total number of applied order status transitions",
		}, []string{"from", "to"}),
		credentialsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sapataria_credentials_issued_total",
			Help: "Total number of bearer credentials issued",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sapataria_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sapataria_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.ordersCreated,
		m.orderTransitions,
		m.credentialsIssued,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// OrderCreated учитывает созданный заказ.
func (m *Metrics) OrderCreated() {
	m.ordersCreated.Inc()
}

// OrderTransition учитывает применённую смену статуса.
func (m *Metrics) OrderTransition(from, to model.OrderStatus) {
	m.orderTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// CredentialIssued учитывает выпущенный токен.
func (m *Metrics) CredentialIssued() {
	m.credentialsIssued.Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware собирает количество и длительность HTTP-запросов по шаблону маршрута.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
