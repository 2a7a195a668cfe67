package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/service"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/cache"
)

type Routes struct {
	logger      log.Logger
	router      *chi.Mux
	svc         service.Service
	enableCache bool
	cache       *cache.LruCache
	requester   Requester
}

// NewRoutes ... Construct a new route handler instance
func NewRoutes(l log.Logger, r *chi.Mux, svc service.Service, enableCache bool, cache *cache.LruCache) Routes {
	return Routes{
		logger:      l,
		router:      r,
		svc:         svc,
		enableCache: enableCache,
		cache:       cache,
	}
}

func jsonResponse(w http.ResponseWriter, data any, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return err
	}
	w.WriteHeader(statusCode)
	_, err = w.Write(body)
	return err
}
