package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "todo_service/internal/lib/api/response"
	"todo_service/internal/lib/logger/sl"

	"github.com/go-chi/render"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func New(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Error("health check failed", slog.String("op", "handlers.health.New"), sl.Err(err))

			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, resp.Error("database unavailable"))

			return
		}

		render.JSON(w, r, resp.OK())
	}
}
