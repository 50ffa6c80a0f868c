package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/silash35/labrob/pinout"
)

const sendTimeout = 2 * time.Second

type RestAPI struct {
	logger      *zerolog.Logger
	address     string
	outChan     chan<- byte
	selectChan  chan<- pinout.Category
	tally       *Tally
	waitGroup   *sync.WaitGroup
	httpServer  *http.Server
	sendTimeout time.Duration
}

type countsResponse struct {
	Counts map[string]uint64 `json:"counts"`
	Total  uint64            `json:"total"`
}

func NewRestApi(logger *zerolog.Logger, address string, outChan chan<- byte, selectChan chan<- pinout.Category,
	tally *Tally, waitGroup *sync.WaitGroup) *RestAPI {
	api := &RestAPI{
		logger:      ptr(logger.With().Str(LogKey.Module, "RestAPI").Logger()),
		address:     address,
		outChan:     outChan,
		selectChan:  selectChan,
		tally:       tally,
		waitGroup:   waitGroup,
		sendTimeout: sendTimeout,
	}
	api.httpServer = &http.Server{
		Addr:         address,
		Handler:      api.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return api
}

func (api *RestAPI) Start(ctx context.Context) {
	api.waitGroup.Add(1)

	go api.listen()
	go api.waitForCancel(ctx)
}

func (api *RestAPI) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", api.handleHome)
	r.Get("/pinout", api.handlePinout)
	r.Get("/counts", api.handleCounts)
	r.Post("/counts/reset", api.handleReset)
	r.Post("/select/{category}", api.handleSelect)
	r.Get("/led/{pin}", api.handleLed)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (api *RestAPI) listen() {
	api.logger.Info().Msgf("Listening on %s", api.address)

	err := api.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		api.logger.Error().Msgf("HTTP server failed: %v", err)
		return
	}
	api.logger.Info().Msg("Done")
}

// waitForCancel holds the WaitGroup until Shutdown has drained in-flight
// handlers, so the channels they send on stay open until then.
func (api *RestAPI) waitForCancel(ctx context.Context) {
	defer api.waitGroup.Done()

	<-ctx.Done()
	api.logger.Info().Msg("Stopping")
	api.stop()
}

func (api *RestAPI) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	api.logger.Info().Msg("Shutting down")
	var err = api.httpServer.Shutdown(ctx)
	if err != nil {
		api.logger.Error().Msgf("HTTP server shutdown error: %s", err)
	}
	api.logger.Info().Msg("Finished shutting down")
}

func (api *RestAPI) handleHome(w http.ResponseWriter, r *http.Request) {
	_, err := w.Write([]byte("CapCounter Home Page"))
	if err != nil {
		api.logger.Error().Msgf("Write failed: %v", err)
	}
}

func (api *RestAPI) handlePinout(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, pinout.Pins())
}

func (api *RestAPI) handleCounts(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, countsResponse{
		Counts: api.tally.Snapshot(),
		Total:  api.tally.Total(),
	})
}

func (api *RestAPI) handleReset(w http.ResponseWriter, r *http.Request) {
	api.tally.Reset()
	api.logger.Info().Msg("Counts reset")
	w.WriteHeader(http.StatusNoContent)
}

func (api *RestAPI) handleSelect(w http.ResponseWriter, r *http.Request) {
	category, err := pinout.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	api.deliver(w, r, func(timeout <-chan time.Time) bool {
		select {
		case api.selectChan <- category:
			return true
		case <-timeout:
			return false
		case <-r.Context().Done():
			return false
		}
	})
}

func (api *RestAPI) handleLed(w http.ResponseWriter, r *http.Request) {
	pin, err := strconv.Atoi(chi.URLParam(r, "pin"))
	if err != nil || pin < 0 || pin > 255 {
		http.Error(w, "invalid pin", http.StatusBadRequest)
		return
	}
	if _, ok := pinout.CategoryForLED(byte(pin)); !ok {
		http.Error(w, "not an LED pin", http.StatusBadRequest)
		return
	}

	on := r.URL.Query().Get("state") != "off"
	api.deliver(w, r, func(timeout <-chan time.Time) bool {
		select {
		case api.outChan <- ledByte(byte(pin), on):
			return true
		case <-timeout:
			return false
		case <-r.Context().Done():
			return false
		}
	})
}

// deliver answers 202 once send succeeds and 503 when the processor or the
// board did not take the request within sendTimeout.
func (api *RestAPI) deliver(w http.ResponseWriter, r *http.Request, send func(timeout <-chan time.Time) bool) {
	timer := time.NewTimer(api.sendTimeout)
	defer timer.Stop()

	if !send(timer.C) {
		api.logger.Warn().Msgf("%s %s not delivered", r.Method, r.URL.Path)
		http.Error(w, "station busy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (api *RestAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		api.logger.Error().Msgf("Write failed: %v", err)
	}
}
