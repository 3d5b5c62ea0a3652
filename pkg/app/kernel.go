package app

import (
	"context"
	"net/http"
	"time"

	"github.com/carepath-academy/carepath/app/controllers"
	"github.com/carepath-academy/carepath/app/routes"
	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/metrics"
	"github.com/carepath-academy/carepath/pkg/middleware"
	"github.com/carepath-academy/carepath/pkg/reqid"
	"github.com/carepath-academy/carepath/pkg/response"
	"github.com/carepath-academy/carepath/pkg/router"
	"github.com/carepath-academy/carepath/pkg/ws"
)

// Handler builds the HTTP kernel.
func (a *Application) Handler() http.Handler {
	ws.SetCheckOrigin(ws.AllowOrigins(config.CORSOrigins()))

	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics, for total latency
	//  2. Recovery
	//  3. Request ID, before anything logs
	//  4. Logger
	//  5. CORS
	//  6. Rate limiter
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(config.Int("RATE_LIMIT", 200), time.Minute))

	r.HandleFunc("/metrics", metrics.Handler())
	r.Get("/healthz", "health", a.health)

	routes.RegisterAPI(r, a.handlers)
	return r.Handler()
}

func (a *Application) health(w http.ResponseWriter, r *http.Request) {
	if err := a.Ping(r.Context()); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	response.Success(w, map[string]string{"status": "ok"})
}

// Ping checks the database connection. The gRPC health service reuses it.
func (a *Application) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// RouteTable lists the API routes without connecting to anything.
func RouteTable() []router.RouteInfo {
	r := router.New()
	routes.RegisterAPI(r, &routes.Handlers{
		Auth:        &controllers.AuthController{},
		Courses:     &controllers.CourseController{},
		Cart:        &controllers.CartController{},
		Checkout:    &controllers.CheckoutController{},
		Enrollments: &controllers.EnrollmentController{},
		Admin:       &controllers.AdminController{},
		GraphQL:     func(http.ResponseWriter, *http.Request) {},
	})
	r.Get("/healthz", "health", func(http.ResponseWriter, *http.Request) {})
	return r.Routes()
}
