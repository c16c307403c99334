package router

import (
	"log/slog"
	"net/http"

	"todo_service/internal/http_server/handlers/health"
	"todo_service/internal/http_server/handlers/login"
	"todo_service/internal/http_server/handlers/logout"
	"todo_service/internal/http_server/handlers/me"
	"todo_service/internal/http_server/handlers/password"
	"todo_service/internal/http_server/handlers/refresh"
	"todo_service/internal/http_server/handlers/signup"
	"todo_service/internal/http_server/handlers/todos"
	"todo_service/internal/http_server/handlers/users"
	"todo_service/internal/http_server/handlers/verify"
	authmw "todo_service/internal/middleware/auth"
	"todo_service/internal/middleware/metrics"
	rateLimit "todo_service/internal/middleware/ratelimit"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

type AuthService interface {
	signup.UserSignuper
	login.UserLoginer
	refresh.TokenRefresher
	logout.UserLogouter
	verify.TokenVerifier
	password.PasswordChanger
	authmw.Authenticator
}

type Deps struct {
	Auth    AuthService
	Users   users.UserService
	Todos   todos.TodoService
	DB      health.Pinger
	Metrics *metrics.Metrics

	// * Пустой список отключает CORS
	CORSOrigins []string
}

func New(log *slog.Logger, deps Deps) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/healthz", health.New(log, deps.DB))

	requireUser := authmw.New(log, deps.Auth)
	loginLimit := rateLimit.Login()
	signupLimit := rateLimit.Signup()
	uploadLimit := rateLimit.UploadUsers()

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login/access_token", login.NewForm(log, validate, deps.Auth))
			r.With(loginLimit).Post("/auth_token", login.New(log, validate, deps.Auth))
			r.With(rateLimit.Refresh()).Get("/refresh_token", refresh.New(log, deps.Auth))
			r.Post("/verify_token", verify.New(log, deps.Auth))
			r.Post("/logout", logout.New(log, deps.Auth))

			r.Group(func(r chi.Router) {
				r.Use(requireUser)

				r.Get("/me", me.New())
				r.With(rateLimit.ChangePassword()).Post("/change_password", password.New(log, validate, deps.Auth))
			})
		})

		// * /user оставлен для совместимости с фронтендом
		for _, prefix := range []string{"/users", "/user"} {
			r.Route(prefix, func(r chi.Router) {
				r.With(signupLimit).Post("/signup", signup.New(log, validate, deps.Auth))

				r.Group(func(r chi.Router) {
					r.Use(requireUser)

					r.With(authmw.RequireSuperuser).Get("/all_user", users.List(log, deps.Users))
					r.With(authmw.RequireSuperuser, uploadLimit).Post("/upload_users", users.Upload(log, deps.Users))
					r.Patch("/edit_user/{user_uuid}", users.Update(log, validate, deps.Users))
					r.Delete("/delete_user/{user_uuid}", users.Delete(log, deps.Users))
					r.Get("/{user_uuid}", users.Get(log, deps.Users))
				})
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Post("/todos", todos.Create(log, validate, deps.Todos))
			r.Get("/todos", todos.List(log, deps.Todos))
			r.Get("/todos/{author_uuid}", todos.ListByAuthor(log, deps.Todos))
			r.Put("/todos/edit/{todo_id}", todos.Update(log, validate, deps.Todos))
			r.Delete("/todos/delete/{todo_id}", todos.Delete(log, deps.Todos))
			r.Get("/todo/{todo_id}", todos.Get(log, deps.Todos))
		})
	})

	return r
}
