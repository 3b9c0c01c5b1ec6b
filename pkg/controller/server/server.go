package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

type Server struct {
	mux *chi.Mux
}

type serverCfg struct {
	memoryLimit uint64
	readMem     ReadMemStatsFn
}

type requestHandler func(uc interfaces.UseCase, r *http.Request) error

type Option func(*serverCfg)

func WithMemoryLimit(limit uint64) Option {
	return func(cfg *serverCfg) {
		cfg.memoryLimit = limit
	}
}

func WithReadMemStats(fn ReadMemStatsFn) Option {
	return func(cfg *serverCfg) {
		cfg.readMem = fn
	}
}

func New(uc interfaces.UseCase, options ...Option) *Server {
	cfg := &serverCfg{
		memoryLimit: 0,
		readMem:     runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(cfg)
	}

	route := chi.NewRouter()

	route.Use(Logging)

	route.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		utils.SafeWrite(w, []byte("OK"))
	})

	api := func(f requestHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if err := f(uc, r); err != nil {
				// Pub/Sub redelivers a push message on any status other than 102, 200, 201, 202 and 204.
				// A malformed message never succeeds, so it is rejected with 400. Other failures get 500 and are retried.
				utils.HandleError(r.Context(), "failed to handle push message", err)
				if errors.Is(err, types.ErrInvalidOption) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			w.WriteHeader(http.StatusOK)
			utils.SafeWrite(w, []byte("OK"))
		}
	}

	route.Route("/pubsub", func(r chi.Router) {
		if cfg.memoryLimit > 0 {
			r.Use(MemoryLimit(cfg.memoryLimit, cfg.readMem))
		}

		r.Post("/push", api(handlePushMessage))
	})

	return &Server{
		mux: route,
	}
}

func handlePushMessage(uc interfaces.UseCase, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read body")
	}

	var msg model.PubSubBody
	if err := json.Unmarshal(body, &msg); err != nil {
		return goerr.Wrap(types.ErrInvalidOption, "failed to unmarshal push body",
			goerr.V("body", string(body)),
			goerr.V("error", err.Error()),
		)
	}

	ctx := r.Context()
	utils.CtxLogger(ctx).Debug("received push message",
		"messageID", msg.Message.MessageID,
		"subscription", msg.Subscription,
	)

	return uc.HandlePushMessage(ctx, &msg)
}

func (x *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	x.mux.ServeHTTP(w, r)
}
