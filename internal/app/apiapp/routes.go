package apiapp

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/config"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	convsvc "github.com/ivankudzin/shipyard/internal/services/conversations"
	mediasvc "github.com/ivankudzin/shipyard/internal/services/media"
	msgsvc "github.com/ivankudzin/shipyard/internal/services/messages"
	profilesvc "github.com/ivankudzin/shipyard/internal/services/profiles"
	"github.com/ivankudzin/shipyard/internal/services/realtime"
	summarysvc "github.com/ivankudzin/shipyard/internal/services/summary"
	"github.com/ivankudzin/shipyard/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService         *authsvc.Service
	ConversationService *convsvc.Service
	MessageService      *msgsvc.Service
	RealtimeService     *realtime.Service
	ProfileService      *profilesvc.Service
	MediaService        *mediasvc.Service
	SummaryService      *summarysvc.Service
	Diagnostics         handlers.DiagnosticsStore
	Logger              *zap.Logger
	Config              config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	resp := handlers.NewResponder(deps.Logger, !deps.Config.IsProduction())

	diagnosticsHandler := handlers.NewDiagnosticsHandler(deps.Diagnostics, resp)
	conversationsHandler := handlers.NewConversationsHandler(deps.ConversationService, resp)
	messagesHandler := handlers.NewMessagesHandler(deps.MessageService, resp)
	streamHandler := handlers.NewStreamHandler(deps.RealtimeService, resp, deps.Logger, deps.Config.Messages.StreamPingInterval)
	profileHandler := handlers.NewProfileHandler(deps.ProfileService, resp)
	mediaHandler := handlers.NewMediaHandler(deps.MediaService, resp)
	summaryHandler := handlers.NewSummaryHandler(deps.SummaryService, resp)
	sessionMW := SessionMiddleware(deps.AuthService, deps.Logger)

	// The stream route holds its connection open, so only plain request/response
	// routes get the request deadline.
	r.With(sessionMW).Get("/conversations/{id}/stream", streamHandler.Serve)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(deps.Config.HTTP.RequestTimeout))

		r.Get("/healthz", diagnosticsHandler.Healthz)
		r.Get("/test-db", diagnosticsHandler.TestDB)
		r.Get("/search", profileHandler.Search)
		r.Post("/summarize", summaryHandler.Summarize)

		r.Group(func(r chi.Router) {
			r.Use(sessionMW)

			r.Get("/conversations", conversationsHandler.List)
			r.Post("/conversations", conversationsHandler.Create)
			r.Get("/conversations/{id}", conversationsHandler.Get)
			r.Get("/conversations/{id}/messages", messagesHandler.List)
			r.Post("/conversations/{id}/messages", messagesHandler.Send)
			r.Post("/conversations/{id}/participants", conversationsHandler.AddParticipant)

			r.Get("/profile", profileHandler.Me)
			r.Post("/profile", profileHandler.Save)
			r.Get("/profile/answers", profileHandler.Answers)
			r.Post("/profile/answers", profileHandler.SaveAnswers)
			r.Get("/profile/{id}", profileHandler.GetByID)

			r.Post("/storage/upload", mediaHandler.Upload)
		})
	})
}
