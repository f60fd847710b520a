package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-token-nosql/internal/application/dispatch"
	"github.com/go-token-nosql/internal/application/recovery"
	"github.com/go-token-nosql/internal/application/token"
	"github.com/go-token-nosql/internal/application/user"
	"github.com/go-token-nosql/internal/application/verification"
	"github.com/go-token-nosql/internal/config"
	"github.com/go-token-nosql/internal/domain"
	jwtinfra "github.com/go-token-nosql/internal/infrastructure/jwt"
	"github.com/go-token-nosql/internal/infrastructure/metrics"
	"github.com/go-token-nosql/internal/transport/http/handler"
	appmiddleware "github.com/go-token-nosql/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	TokenStore  token.Store
	Blobs       BlobStore
	Notifier    dispatch.Notifier
	JWTProvider *jwtinfra.Provider
	// Metrics is optional; a nil value disables token counters.
	Metrics *metrics.Tokens
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var (
		managerOpts []token.Option
		failures    dispatch.FailureRecorder
	)
	if deps.Metrics != nil {
		managerOpts = append(managerOpts, token.WithRecorder(deps.Metrics))
		failures = deps.Metrics
	}
	tokens := token.NewManager(deps.TokenStore, managerOpts...)
	dispatcher := dispatch.NewAdapter(deps.Notifier, cfg.PublicBaseURL, cfg.Location(), failures)

	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:         deps.UserRepo,
		Tokens:           tokens,
		Blobs:            deps.Blobs,
		JWTProvider:      deps.JWTProvider,
		DefaultAvatarURL: cfg.DefaultAvatarURL,
	})
	verificationSvc := verification.NewService(verification.ServiceDeps{
		Tokens:     tokens,
		UserRepo:   deps.UserRepo,
		Dispatcher: dispatcher,
		TTL:        cfg.VerificationTokenTTL,
	})
	recoverySvc := recovery.NewService(recovery.ServiceDeps{
		Tokens:     tokens,
		UserRepo:   deps.UserRepo,
		Dispatcher: dispatcher,
		TTL:        cfg.RecoveryOTPTTL,
	})

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(userSvc)
	verifyH := handler.NewVerificationHandler(verificationSvc)
	recoveryH := handler.NewRecoveryHandler(recoverySvc)

	authed := []func(http.Handler) http.Handler{
		appmiddleware.Auth(deps.JWTProvider),
		appmiddleware.CurrentUser(deps.UserRepo),
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/user", func(r chi.Router) {
			// ── Public routes (no auth) ──────────────────────────────────────
			r.Post("/signup", userH.Signup)
			r.Post("/login", userH.Login)
			r.Get("/verify/email/confirmation/{token}", verifyH.Confirm(domain.ChannelEmail))
			r.Get("/verify/sms/confirmation/{token}", verifyH.Confirm(domain.ChannelSMS))
			r.Post("/password/reset/email/send", recoveryH.Send(domain.ChannelEmail))
			r.Post("/password/reset/email/resend", recoveryH.Resend(domain.ChannelEmail))
			r.Post("/password/reset/phoneno/send", recoveryH.Send(domain.ChannelSMS))
			r.Post("/password/reset/phoneno/resend", recoveryH.Resend(domain.ChannelSMS))
			r.Post("/password/reset/verify/beforeLogin", recoveryH.BeforeLogin)

			// ── Authenticated routes ─────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(authed...)

				r.Get("/", userH.Search)
				r.Get("/me", userH.Me)
				r.Post("/verify/email/send", verifyH.Send(domain.ChannelEmail))
				r.Post("/verify/email/resend", verifyH.Resend(domain.ChannelEmail))
				r.Post("/verify/phoneno/send", verifyH.Send(domain.ChannelSMS))
				r.Post("/verify/phoneno/resend", verifyH.Resend(domain.ChannelSMS))
				r.Post("/password/reset/verify/afterLogin", recoveryH.AfterLogin)
				r.Patch("/update/name", userH.UpdateName)
				r.Patch("/update/email", userH.UpdateEmail)
				r.Patch("/update/phoneNumber", userH.UpdatePhoneNumber)
				r.Patch("/update/avatar", userH.UpdateAvatar)
			})
		})
	})

	return r
}
