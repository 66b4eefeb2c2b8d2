package api

import (
	"net/http"
	"time"

	"code_duel/internal/api/handler"
	"code_duel/internal/app/service"
	"code_duel/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Matchmaking *service.MatchmakingService
	Matches     *service.MatchService
	Submissions *service.SubmissionService
	Drafts      *service.DraftService
}

// NewRouter builds the HTTP API. With no allowedOrigins, CORS headers are not sent.
func NewRouter(s Services, allowedOrigins ...string) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Tokens are issued by the identity provider; we only verify them.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		roomHandler := handler.NewRoomHandler(s.Matchmaking, s.Matches)
		v1.Route("/rooms", roomHandler.RegisterRoutes)

		matchHandler := handler.NewMatchHandler(s.Matches, s.Submissions, s.Drafts)
		v1.Route("/matches", matchHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(s.Submissions)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)
	})

	return r
}
