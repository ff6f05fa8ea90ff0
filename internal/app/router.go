package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lekha-erp/lekha-erp/internal/allocation"
	"github.com/lekha-erp/lekha-erp/internal/audit"
	"github.com/lekha-erp/lekha-erp/internal/billing"
	"github.com/lekha-erp/lekha-erp/internal/journal"
	"github.com/lekha-erp/lekha-erp/internal/ledger"
	"github.com/lekha-erp/lekha-erp/internal/observability"
	"github.com/lekha-erp/lekha-erp/internal/periods"
	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LedgerHandler     *ledger.Handler
	JournalHandler    *journal.Handler
	PeriodsHandler    *periods.Handler
	BillingHandler    *billing.Handler
	SecurityHandler   *security.Handler
	AllocationHandler *allocation.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(TenantMiddleware(params.Logger))
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.JournalHandler != nil {
			r.Route("/journal", params.JournalHandler.MountRoutes)
		}
		if params.PeriodsHandler != nil {
			r.Route("/periods", params.PeriodsHandler.MountRoutes)
		}
		if params.BillingHandler != nil {
			r.Route("/bills", params.BillingHandler.MountRoutes)
		}
		if params.SecurityHandler != nil {
			r.Route("/security", params.SecurityHandler.MountRoutes)
		}
		if params.AllocationHandler != nil {
			r.Route("/allocation", params.AllocationHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	return r
}
