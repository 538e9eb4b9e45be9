package genqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/exp/slog"
)

const maxWait = 5 * time.Minute

type submitRequest struct {
	Prompt   string `json:"prompt"`
	Priority int    `json:"priority"`
}

type submitResponse struct {
	ID       string `json:"id,omitempty"`
	Position int    `json:"position,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
	ResetIn  int    `json:"reset_in,omitempty"` // seconds, for RateLimited
}

type rateLimitResponse struct {
	Requests int `json:"requests"`
	Limit    int `json:"limit"`
	Window   int `json:"window"`   // seconds
	ResetIn  int `json:"reset_in"` // seconds
}

type handler struct {
	svc       *Service
	keyGetter func(r *http.Request) string
	logger    *slog.Logger
}

// NewHTTPHandler exposes svc over HTTP. keyGetter returns the requester id
// of a request, e.g. from an authenticated header.
//
//	POST   /v1/generations            submit {"prompt": "...", "priority": 0}
//	GET    /v1/generations/{id}       result, ?wait=30s to poll for it
//	GET    /v1/queue                  queue info
//	GET    /v1/queue/{requester}      requester status
//	DELETE /v1/queue/{requester}      cancel a pending request
//	GET    /v1/ratelimit/{requester}  rate window
func NewHTTPHandler(svc *Service, keyGetter func(r *http.Request) string) http.Handler {
	h := &handler{
		svc:       svc,
		keyGetter: keyGetter,
		logger:    svc.logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/generations", h.submit).Methods(http.MethodPost)
	r.HandleFunc("/v1/generations/{id}", h.result).Methods(http.MethodGet)
	r.HandleFunc("/v1/queue", h.queue).Methods(http.MethodGet)
	r.HandleFunc("/v1/queue/{requester}", h.status).Methods(http.MethodGet)
	r.HandleFunc("/v1/queue/{requester}", h.cancel).Methods(http.MethodDelete)
	r.HandleFunc("/v1/ratelimit/{requester}", h.rateLimit).Methods(http.MethodGet)

	return r
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	requesterID := h.keyGetter(r)
	if requesterID == "" {
		h.writeJSON(w, http.StatusUnauthorized, submitResponse{Error: "missing requester id"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		h.writeJSON(w, http.StatusBadRequest, submitResponse{Error: "body must be {\"prompt\": \"...\"}"})
		return
	}

	res := h.svc.Submit(r.Context(), requesterID, req.Prompt, req.Priority)
	if res.Accepted {
		h.writeJSON(w, http.StatusAccepted, submitResponse{ID: res.ItemID, Position: res.Position})
		return
	}

	body := submitResponse{Reason: res.Reason.String(), Error: res.Err().Error()}
	if res.Reason == ReasonRateLimited {
		setRateLimitHeaders(w, res.RateLimit)
		body.ResetIn = seconds(res.RateLimit.Reset)
	}
	h.writeJSON(w, statusFor(res.Reason), body)
}

func (h *handler) result(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, ok := h.svc.Result(id)
	if !ok && r.URL.Query().Get("wait") != "" {
		wait, err := time.ParseDuration(r.URL.Query().Get("wait"))
		if err != nil || wait <= 0 {
			h.writeJSON(w, http.StatusBadRequest, submitResponse{Error: "invalid wait duration"})
			return
		}
		if wait > maxWait {
			wait = maxWait
		}

		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		res, err = h.svc.Wait(ctx, id)
		ok = err == nil
	}

	if !ok {
		h.writeJSON(w, http.StatusNotFound, submitResponse{ID: id, Error: "result not available"})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) queue(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Coordinator().QueueInfo())
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Status(mux.Vars(r)["requester"]))
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	requesterID := mux.Vars(r)["requester"]
	if h.keyGetter(r) != requesterID {
		h.writeJSON(w, http.StatusForbidden, submitResponse{Error: "can only cancel own requests"})
		return
	}

	if !h.svc.Cancel(requesterID) {
		h.writeJSON(w, http.StatusConflict, submitResponse{Error: "no pending request"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) rateLimit(w http.ResponseWriter, r *http.Request) {
	info := h.svc.Coordinator().RateLimitInfo(mux.Vars(r)["requester"])
	setRateLimitHeaders(w, info)
	h.writeJSON(w, http.StatusOK, rateLimitResponse{
		Requests: info.Count,
		Limit:    info.Limit,
		Window:   seconds(info.Window),
		ResetIn:  seconds(info.Reset),
	})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("error writing response", slog.Any("error", err))
	}
}

func setRateLimitHeaders(w http.ResponseWriter, info RateLimitInfo) {
	w.Header().Add("RateLimit-Limit", fmt.Sprintf("%v", info.Limit))
	w.Header().Add("RateLimit-Remaining", fmt.Sprintf("%v", info.Remaining))
	w.Header().Add("RateLimit-Reset", fmt.Sprintf("%v", seconds(info.Reset)))
	w.Header().Add("RateLimit-Policy", fmt.Sprintf("%v;w=%v", info.Limit, seconds(info.Window)))
}

func statusFor(reason Reason) int {
	switch reason {
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonQueueFull:
		return http.StatusServiceUnavailable
	case ReasonDuplicateInQueue, ReasonAlreadyProcessing:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
