// Package httpapi serves the read-only discovery API as JSON (listings,
// requests, bids, balances and the escrow total) plus health and metrics.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bite/domain/ledger"
	"bite/infra/metrics"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Reader is the query side of the marketplace.
type Reader interface {
	Service(ledger.ServiceID) (ledger.Service, error)
	Services() []ledger.Service
	Request(ledger.RequestID) (ledger.Request, error)
	Requests(*ledger.Status) []ledger.Request
	Bidders(ledger.RequestID) ([]ledger.Address, error)
	Offer(ledger.RequestID, ledger.Address) (ledger.Offer, error)
	Balance(ledger.Address) ledger.Amount
	Escrowed() ledger.Amount
}

type Handler struct {
	reader Reader
	log    *logrus.Entry
}

// NewRouter builds the mux with every route registered.
func NewRouter(reader Reader, log *logrus.Logger) *mux.Router {
	h := &Handler{reader: reader, log: log.WithField("component", "http")}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/services", h.handleListServices).Methods(http.MethodGet)
	v1.HandleFunc("/services/{id:[0-9]+}", h.handleGetService).Methods(http.MethodGet)
	v1.HandleFunc("/requests", h.handleListRequests).Methods(http.MethodGet)
	v1.HandleFunc("/requests/{id:[0-9]+}", h.handleGetRequest).Methods(http.MethodGet)
	v1.HandleFunc("/requests/{id:[0-9]+}/bidders", h.handleListBidders).Methods(http.MethodGet)
	v1.HandleFunc("/requests/{id:[0-9]+}/offers/{provider}", h.handleGetOffer).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{address}/balance", h.handleGetBalance).Methods(http.MethodGet)
	v1.HandleFunc("/escrow", h.handleGetEscrow).Methods(http.MethodGet)

	return r
}

// =============================================================================
// Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.reader.Services())
}

func (h *Handler) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	svc, err := h.reader.Service(ledger.ServiceID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	var filter *ledger.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := ledger.ParseStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		filter = &st
	}
	writeJSON(w, http.StatusOK, h.reader.Requests(filter))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req, err := h.reader.Request(ledger.RequestID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleListBidders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	bidders, err := h.reader.Bidders(ledger.RequestID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bidders)
}

func (h *Handler) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	provider, err := ledger.ParseAddress(mux.Vars(r)["provider"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	o, err := h.reader.Offer(ledger.RequestID(id), provider)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type balanceBody struct {
	Account ledger.Address `json:"account"`
	Balance ledger.Amount  `json:"balance,string"`
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	a, err := ledger.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceBody{Account: a, Balance: h.reader.Balance(a)})
}

type escrowBody struct {
	Escrowed ledger.Amount `json:"escrowed,string"`
}

// handleGetEscrow reports the total held for open requests.
func (h *Handler) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, escrowBody{Escrowed: h.reader.Escrowed()})
}

// =============================================================================
// Helpers
// =============================================================================

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "id"), errBadPath)
	}
	return id, nil
}

var errBadPath = errors.New("bad path parameter")

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := ledger.KindOf(err)
	code := http.StatusInternalServerError
	switch {
	case kind == ledger.KindNotFound:
		code = http.StatusNotFound
	case kind == ledger.KindInvalidInput, errors.Is(err, errBadPath):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		h.log.WithError(err).Error("query failed")
	}
	body := errorBody{Error: err.Error()}
	if kind != ledger.KindUnknown {
		body.Kind = kind.String()
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
