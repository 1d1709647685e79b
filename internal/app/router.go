package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillbooks/quillbooks/internal/bankrecon"
	"github.com/quillbooks/quillbooks/internal/cheques"
	"github.com/quillbooks/quillbooks/internal/observability"
	"github.com/quillbooks/quillbooks/internal/payments"
	"github.com/quillbooks/quillbooks/internal/stock"
	"github.com/quillbooks/quillbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Pool             *pgxpool.Pool
	StockHandler     *stock.Handler
	PaymentsHandler  *payments.Handler
	BankReconHandler *bankrecon.Handler
	ChequesHandler   *cheques.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with QuillBooks defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("readiness check", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	r.Route("/api", func(api chi.Router) {
		if params.StockHandler != nil {
			api.Route("/stock", func(sr chi.Router) {
				params.StockHandler.MountRoutes(sr)
			})
		}
		if params.PaymentsHandler != nil {
			api.Route("/payments", func(pr chi.Router) {
				params.PaymentsHandler.MountRoutes(pr)
			})
		}
		if params.BankReconHandler != nil {
			api.Route("/reconciliations", func(br chi.Router) {
				params.BankReconHandler.MountRoutes(br)
			})
		}
		if params.ChequesHandler != nil {
			api.Route("/cheques", func(cr chi.Router) {
				params.ChequesHandler.MountRoutes(cr)
			})
		}
	})

	return r
}
