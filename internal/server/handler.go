/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kentakayama/bt-verify/internal/background"
	"github.com/kentakayama/bt-verify/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxRequestBodyBytes = 8 << 20 // inline scripts travel in RAW_JS bodies

	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
)

type handler struct {
	engine *background.Engine
	logger *zap.SugaredLogger
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

// HeadersRequest carries the CSP headers of a tab's main-frame response.
type HeadersRequest struct {
	CSPHeader       string `json:"cspHeader" cbor:"cspHeader"`
	CSPReportHeader string `json:"cspReportHeader" cbor:"cspReportHeader"`
}

type stateResponse struct {
	State      string `json:"state"`
	PopupState string `json:"popupState"`
}

func newHandler(engine *background.Engine, logger *zap.SugaredLogger) *handler {
	return &handler{
		engine: engine,
		logger: logger,
	}
}

// NewHandler exposes engine over HTTP without owning a listener.
func NewHandler(engine *background.Engine, logger *zap.SugaredLogger) http.Handler {
	return newHandler(engine, config.LoggerOrNop(logger)).routes()
}

func (h *handler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/message", h.message)
	r.Get("/debug/{tabId}", h.debugList)
	r.Get("/tabs/{tabId}/state", h.tabState)
	r.Put("/tabs/{tabId}/headers", h.recordHeaders)
	r.Delete("/tabs/{tabId}", h.removeTab)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.engine.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.writeResponse(w, responseSpec{status: http.StatusOK, body: []byte("OK"), contentType: "text/plain"})
	})
	return r
}

func (h *handler) message(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	useCBOR, ok := h.negotiate(w, r)
	if !ok {
		return
	}

	var (
		msg background.Message
		err error
	)
	if useCBOR {
		msg, err = background.DecodeCBOR(body)
	} else {
		msg, err = background.DecodeJSON(body)
	}
	if err != nil {
		h.logger.Infof("rejecting message: %v", err)
		status := http.StatusBadRequest
		if errors.Is(err, background.ErrUnknownMessage) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	resp, err := h.engine.Dispatch(r.Context(), msg)
	if err != nil {
		h.logger.Errorf("failed to dispatch %s: %v", msg.Type(), err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	if msg.Type() == background.TypeDebug {
		h.writeResponse(w, responseSpec{status: http.StatusNoContent})
		return
	}
	h.writeEncoded(w, useCBOR, resp.Reply(msg.Type()))
}

func (h *handler) debugList(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabID(w, r)
	if !ok {
		return
	}
	resp, err := h.engine.Dispatch(r.Context(), background.GetDebug{TabID: tabID})
	if err != nil {
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeEncoded(w, false, resp.Reply(background.TypeGetDebug))
}

func (h *handler) tabState(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabID(w, r)
	if !ok {
		return
	}
	st, found := h.engine.TabStates().State(tabID)
	if !found {
		http.NotFound(w, r)
		return
	}
	h.writeEncoded(w, false, stateResponse{State: string(st), PopupState: st.PopupState()})
}

func (h *handler) recordHeaders(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabID(w, r)
	if !ok {
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	useCBOR, ok := h.negotiate(w, r)
	if !ok {
		return
	}

	var req HeadersRequest
	var err error
	if useCBOR {
		err = cbor.Unmarshal(body, &req)
	} else {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		http.Error(w, "failed to parse headers", http.StatusBadRequest)
		return
	}

	header := http.Header{}
	if req.CSPHeader != "" {
		header.Set(background.HeaderCSP, req.CSPHeader)
	}
	if req.CSPReportHeader != "" {
		header.Set(background.HeaderCSPReportOnly, req.CSPReportHeader)
	}
	h.engine.RecordHeaders(tabID, header)
	h.writeResponse(w, responseSpec{status: http.StatusNoContent})
}

func (h *handler) removeTab(w http.ResponseWriter, r *http.Request) {
	tabID, ok := h.tabID(w, r)
	if !ok {
		return
	}
	h.engine.RemoveTab(tabID)
	h.writeResponse(w, responseSpec{status: http.StatusNoContent})
}

func (h *handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.Infof("failed reading request body: %v", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if err := r.Body.Close(); err != nil {
		h.logger.Infof("failed closing request body: %v", err)
		http.Error(w, "failed to close request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// negotiate reports whether the request body is CBOR. Only JSON and CBOR
// are accepted; a missing Content-Type means JSON.
func (h *handler) negotiate(w http.ResponseWriter, r *http.Request) (bool, bool) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false, true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	switch {
	case err != nil:
	case mediaType == contentTypeJSON:
		return false, true
	case mediaType == contentTypeCBOR:
		return true, true
	}
	h.logger.Infof("content type mismatch: expected %s or %s, actual %v", contentTypeJSON, contentTypeCBOR, ct)
	http.Error(w, "This endpoint only accepts Content-Type: application/json or application/cbor", http.StatusUnsupportedMediaType)
	return false, false
}

func (h *handler) tabID(w http.ResponseWriter, r *http.Request) (int, bool) {
	tabID, err := strconv.Atoi(chi.URLParam(r, "tabId"))
	if err != nil {
		http.Error(w, "invalid tab id", http.StatusBadRequest)
		return 0, false
	}
	return tabID, true
}

func (h *handler) writeEncoded(w http.ResponseWriter, useCBOR bool, v any) {
	var (
		body []byte
		err  error
		ct   = contentTypeJSON
	)
	if useCBOR {
		body, err = cbor.Marshal(v)
		ct = contentTypeCBOR
	} else {
		body, err = json.Marshal(v)
	}
	if err != nil {
		h.logger.Errorf("failed encoding response: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeResponse(w, responseSpec{status: http.StatusOK, body: body, contentType: ct})
}

func (h *handler) writeResponse(w http.ResponseWriter, spec responseSpec) {
	if len(spec.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", spec.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(spec.body)))
		w.WriteHeader(spec.status)
		if _, err := w.Write(spec.body); err != nil {
			h.logger.Infof("failed writing response body: %v", err)
		}
		return
	}

	w.WriteHeader(spec.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
