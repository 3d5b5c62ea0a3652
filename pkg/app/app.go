// Package app assembles CarePath: infrastructure clients, services,
// controllers and the HTTP kernel.
//
// Production code boots everything from config:
//
//	a, err := app.Boot(ctx)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	return a.Serve(ctx)
//
// Tests build the same graph around in-memory fakes:
//
//	a, err := app.New(app.Options{DB: db, Disk: disk, Payment: fakeStripe})
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/graphql-go/graphql"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/controllers"
	"github.com/carepath-academy/carepath/app/jobs"
	"github.com/carepath-academy/carepath/app/listeners"
	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/app/routes"
	"github.com/carepath-academy/carepath/app/services"
	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/database"
	"github.com/carepath-academy/carepath/pkg/event"
	gql "github.com/carepath-academy/carepath/pkg/graphql"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/mail"
	"github.com/carepath-academy/carepath/pkg/oauth"
	"github.com/carepath-academy/carepath/pkg/payment"
	"github.com/carepath-academy/carepath/pkg/queue"
	"github.com/carepath-academy/carepath/pkg/schedule"
	"github.com/carepath-academy/carepath/pkg/storage"
	"github.com/carepath-academy/carepath/pkg/ws"
)

// Options are the collaborators New wires together. Only DB and Disk are
// required; the rest fall back to the configured implementations.
type Options struct {
	DB          *gorm.DB
	KV          cache.Store
	Disk        storage.Disk
	Mailer      mail.Mailer
	Payment     payment.Provider
	Google      services.GoogleProvider
	QueueDriver queue.Driver
}

// Services groups the domain services. Commands and tests reach into it.
type Services struct {
	Auth        *services.AuthService
	Resets      *services.PasswordResetService
	Courses     *services.CourseService
	Carts       *services.CartService
	Checkout    *services.CheckoutService
	Payments    *services.PaymentService
	Enrollments *services.EnrollmentService
	Admin       *services.AdminService
}

// Application is the booted object graph.
type Application struct {
	DB        *gorm.DB
	KV        cache.Store
	Disk      storage.Disk
	Mailer    mail.Mailer
	Queue     *queue.Manager
	Events    *event.Bus
	Hub       *ws.Hub
	Scheduler *schedule.Scheduler
	Services  Services

	handlers *routes.Handlers
	closers  []func() error
}

// New builds the application around opts.
func New(opts Options) (*Application, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("app: a database is required")
	}
	if opts.Disk == nil {
		return nil, fmt.Errorf("app: a storage disk is required")
	}
	if opts.KV == nil {
		opts.KV = cache.New(opts.DB)
	}
	if opts.Mailer == nil {
		opts.Mailer = mail.New()
	}
	if opts.Payment == nil {
		opts.Payment = payment.NewStripe(payment.StripeConfig{
			SecretKey:     config.StripeSecretKey(),
			WebhookSecret: config.StripeWebhookSecret(),
		})
	}
	if opts.Google == nil {
		opts.Google = oauth.NewGoogle(config.GoogleClientID(), config.GoogleClientSecret(), config.GoogleRedirectURL())
	}
	if opts.QueueDriver == nil {
		opts.QueueDriver = queue.NewMemoryDriver(0)
	}

	a := &Application{
		DB:     opts.DB,
		KV:     opts.KV,
		Disk:   opts.Disk,
		Mailer: opts.Mailer,
		Events: event.New(),
		Hub:    ws.NewHub(),
		Queue: queue.New(opts.QueueDriver, queue.Options{
			Workers:  config.QueueWorkers(),
			MaxRetry: config.Int("QUEUE_MAX_RETRY", 3),
			Backoff:  2 * time.Second,
			DB:       opts.DB,
		}),
	}
	a.closers = append(a.closers, a.Queue.Close)

	jobs.Register(a.Queue, &jobs.Deps{
		DB:         opts.DB,
		Mailer:     opts.Mailer,
		Disk:       opts.Disk,
		AdminEmail: config.AdminEmail(),
		AppURL:     config.AppURL(),
	})

	users := repositories.NewUserRepository(opts.DB)
	listeners.Register(a.Events, a.Hub, a.Queue, users)

	carts := services.NewCartService(opts.DB)
	s := Services{
		Auth:        services.NewAuthService(opts.DB, opts.KV, opts.Google),
		Resets:      services.NewPasswordResetService(opts.DB, opts.KV, a.Queue),
		Courses:     services.NewCourseService(opts.DB),
		Carts:       carts,
		Checkout:    services.NewCheckoutService(carts, users, opts.Payment, services.CheckoutConfig{AppURL: config.AppURL(), Currency: config.StripeCurrency()}),
		Payments:    services.NewPaymentService(opts.DB, opts.Payment, a.Events),
		Enrollments: services.NewEnrollmentService(opts.DB, opts.Disk, a.Events),
		Admin:       services.NewAdminService(opts.DB),
	}
	a.Services = s

	schema, err := controllers.NewAdminSchema(s.Admin, s.Enrollments)
	if err != nil {
		return nil, fmt.Errorf("app: graphql schema: %w", err)
	}
	a.handlers = newHandlers(s, a.Hub, schema)

	a.Scheduler, err = a.housekeeping()
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newHandlers(s Services, hub *ws.Hub, schema graphql.Schema) *routes.Handlers {
	return &routes.Handlers{
		Auth:        controllers.NewAuthController(s.Auth, s.Resets),
		Courses:     controllers.NewCourseController(s.Courses),
		Cart:        controllers.NewCartController(s.Carts),
		Checkout:    controllers.NewCheckoutController(s.Checkout, s.Payments),
		Enrollments: controllers.NewEnrollmentController(s.Enrollments),
		Admin:       controllers.NewAdminController(s.Admin, s.Courses, s.Enrollments, hub),
		GraphQL:     gql.Handler(schema),
		Active:      s.Auth.EnsureActive,
	}
}

// Boot connects every configured backend and builds the application.
func Boot(ctx context.Context) (*Application, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.Connect(); err != nil {
		return nil, err
	}
	closers := []func() error{database.Close}
	fail := func(err error) (*Application, error) {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}

	if config.KVDriver() == "redis" || config.QueueDriver() == "redis" {
		if err := cache.ConnectRedis(ctx); err != nil {
			return fail(err)
		}
		closers = append(closers, cache.RDB.Close)
	}

	disk, err := storage.FromConfig(ctx)
	if err != nil {
		return fail(err)
	}
	driver, err := queue.DriverFromConfig(cache.RDB)
	if err != nil {
		return fail(err)
	}

	a, err := New(Options{
		DB:          database.DB,
		KV:          cache.New(database.DB),
		Disk:        disk,
		Mailer:      mail.New(),
		QueueDriver: driver,
	})
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closers...)
	return a, nil
}

// Close waits for in-flight event listeners, then releases the queue driver
// and every connection Boot opened.
func (a *Application) Close() {
	a.Events.Wait()
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn("app: close", "error", err)
		}
	}
}
