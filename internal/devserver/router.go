package devserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"snappdf/internal/middleware"
)

// NewRouter assembles the full route table with the shared middleware
// stack. Static assets are served from the filesystem store so the Path
// URLs handed out by uploads resolve.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(app.logger))

	c := cors.New(cors.Options{
		AllowedOrigins:   app.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	loginLimiter := middleware.RateLimit(app.cfg.RateLimitPerMin, time.Minute)

	r.Route("/api/user", func(r chi.Router) {
		r.With(loginLimiter).Post("/login", app.Login)
		r.With(loginLimiter).Post("/signup", app.Signup)
		r.Post("/logout", app.Logout)
		r.Get("/session", app.requireAuth(app.Session))
		r.Get("/refresh-token", app.RefreshToken)
		r.Put("/update-image", app.requireAuth(app.UpdateImage))
	})

	r.Route("/api/plan", func(r chi.Router) {
		r.Get("/", app.ListPlans)
		r.Post("/", app.requireAdmin(app.CreatePlan))
		r.Put("/{id}", app.requireAdmin(app.UpdatePlan))
		r.Delete("/{id}", app.requireAdmin(app.DeletePlan))
		r.Post("/checkout/{id}", app.requireAuth(app.Checkout))
		r.Post("/payment/verify/{id}", app.requireAuth(app.VerifyPayment))
	})

	r.Route("/api/storage", func(r chi.Router) {
		r.Get("/all", app.requireAuth(app.ListFiles))
		r.Post("/create", app.requireAuth(app.UploadFile))
		r.Post("/upload-logo", app.requireAuth(app.UploadLogo))
		r.Delete("/{id}", app.requireAuth(app.DeleteFile))
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/{id}", app.requireAuth(app.ChatHistory))
		r.Post("/", app.requireAuth(app.Ask))
		r.Delete("/{id}", app.requireAuth(app.DeleteChat))
	})

	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(app.assets.BasePath())))
	r.Get("/static/*", fs.ServeHTTP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		app.json(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
