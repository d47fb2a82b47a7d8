package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/store"
)

// clientPath is where the flash loader is served from. The page handed
// back on login embeds it with the player's credentials in the query
// string, which is how the legacy client picks them up.
const clientPath = "/privatewolswf/publicV1.swf"

func Register(players store.PlayerStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		dname := r.PostFormValue("dname")
		snum := r.PostFormValue("snum")
		email := r.PostFormValue("email")
		if dname == "" || snum == "" {
			http.Error(w, "dname and snum are required", http.StatusBadRequest)
			return
		}

		taken, err := players.Exists(r.Context(), dname, email)
		if err != nil {
			log.Error("registration lookup failed", zap.String("dname", dname), zap.Error(err))
			http.Error(w, "registration error", http.StatusInternalServerError)
			return
		}
		if taken {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, alreadyExistsPage)
			return
		}

		snap := player.NewDefault(uuid.NewString(), dname)
		snap.Email = email
		snap.LKey = snum
		if err := players.Upsert(r.Context(), snap); err != nil {
			log.Error("registration write failed", zap.String("dname", dname), zap.Error(err))
			http.Error(w, "registration error", http.StatusInternalServerError)
			return
		}

		log.Info("player registered", zap.String("dname", dname), zap.String("id", snap.ID))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, registeredPage)
	}
}

func Login(players store.PlayerStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		dname := r.PostFormValue("dname")
		snum := r.PostFormValue("snum")

		snap, err := players.Fetch(r.Context(), dname)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error("login lookup failed", zap.String("dname", dname), zap.Error(err))
			http.Error(w, "login error", http.StatusInternalServerError)
			return
		}
		if snap == nil || snap.LKey != snum {
			log.Info("login rejected", zap.String("dname", dname))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, loginFailedPage)
			return
		}

		log.Info("login accepted", zap.String("dname", dname))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, loaderPage(dname, snum))
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
