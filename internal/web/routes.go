// Package web is the account surface: registration and the login page
// that hands players off to the game client. The game itself never
// speaks HTTP; this surface only reads and writes the player store.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/store"
)

func SetupRoutes(players store.PlayerStore, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/registered", Register(players, log))
	r.Post("/juego", Login(players, log))
	r.Get("/healthz", Healthz)
	return r
}
