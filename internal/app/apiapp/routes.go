package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	matchessvc "github.com/ebuka-odih/nyem-sub003/internal/services/matches"
	messagesvc "github.com/ebuka-odih/nyem-sub003/internal/services/messages"
	swipesvc "github.com/ebuka-odih/nyem-sub003/internal/services/swipes"
	"github.com/ebuka-odih/nyem-sub003/internal/transport/http/handlers"
)

type Dependencies struct {
	Tokens         TokenParser
	SwipeService   *swipesvc.Service
	MatchService   *matchessvc.Service
	MessageService *messagesvc.Service
	Presence       handlers.PresenceReader
	Logger         *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	swipeHandler := handlers.NewSwipeHandler(deps.SwipeService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchService)
	messagesHandler := handlers.NewMessagesHandler(deps.MessageService)
	presenceHandler := handlers.NewPresenceHandler(deps.Presence)
	authMW := AuthMiddleware(deps.Tokens, deps.Logger)

	r.Get("/healthz", healthHandler.Get)
	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/swipes", swipeHandler.Handle)
		r.Get("/matches", matchesHandler.Handle)
		r.Post("/blocks", matchesHandler.Block)
		r.Get("/conversations/{id}/messages", messagesHandler.List)
		r.Post("/conversations/{id}/messages", messagesHandler.Send)
		r.Get("/presence/{user_id}", presenceHandler.Get)
	})
}
