package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers groups the handler set mounted on the router.
type Handlers struct {
	Scans *ScanHandler
	Queue *QueueHandler
	Sync  *SyncHandler
}

// NewRouter mounts the operator API.
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(RequestLogger(logger))

	router.HandleFunc("/scans", h.Scans.Submit).Methods(http.MethodPost)

	router.HandleFunc("/events/active", h.Scans.GetActiveEvent).Methods(http.MethodGet)
	router.HandleFunc("/events/active", h.Scans.SetActiveEvent).Methods(http.MethodPut)

	router.HandleFunc("/queue", h.Queue.List).Methods(http.MethodGet)
	router.HandleFunc("/queue/{id}", h.Queue.Get).Methods(http.MethodGet)
	router.HandleFunc("/checkins/{eventID}", h.Queue.ListCheckins).Methods(http.MethodGet)

	router.HandleFunc("/sync/run", h.Sync.Run).Methods(http.MethodPost)
	router.HandleFunc("/warnings/stale", h.Sync.StaleWarnings).Methods(http.MethodGet)
	router.HandleFunc("/connectivity", h.Sync.GetConnectivity).Methods(http.MethodGet)
	router.HandleFunc("/connectivity", h.Sync.SetConnectivity).Methods(http.MethodPut)
	router.HandleFunc("/healthz", h.Sync.Healthz).Methods(http.MethodGet)

	return router
}
