// HTTP handler for the mock engine: control plane routing and dispatch of
// application traffic.

package engine

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/httpmock/internal/matching"
	"github.com/getmockd/httpmock/pkg/expectation"
	"github.com/getmockd/httpmock/pkg/httputil"
	"github.com/getmockd/httpmock/pkg/logging"
	"github.com/getmockd/httpmock/pkg/metrics"
	"github.com/getmockd/httpmock/pkg/requestlog"
	"github.com/getmockd/httpmock/pkg/wire"
)

// DefaultMaxBodySize is the request body limit used when none is configured (10MB).
const DefaultMaxBodySize = 10 << 20

// Control plane paths.
const (
	ExpectationPath = "/_expectation"
	ResetPath       = "/_all"
	RequestPath     = "/_request/"
)

// NoMatchBody is the body of the 404 answered when no expectation matches.
const NoMatchBody = "No matching expectation found"

const (
	requestNotFoundBody = "No recorded request at this position"
	bodyTooLargeBody    = "Request body exceeds maximum allowed size"
	maxMultipartMemory  = 32 << 20
)

// Control operation labels for metrics.
const (
	opRegister = "register"
	opReset    = "reset"
	opCount    = "count"
	opPeek     = "peek"
	opPop      = "pop"
)

// Handler serves both the control plane and application traffic of one
// mock server.
type Handler struct {
	expectations *expectation.Stack
	requests     requestlog.Store
	control      *http.ServeMux
	log          *slog.Logger
	metrics      *metrics.Collector
	maxBodySize  int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the operational logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHandlerMetrics records dispatch and control metrics on c.
func WithHandlerMetrics(c *metrics.Collector) HandlerOption {
	return func(h *Handler) {
		h.metrics = c
	}
}

// WithMaxBodySize caps request bodies. Non-positive values keep the default.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// NewHandler creates a Handler over the given expectation stack and request log.
func NewHandler(expectations *expectation.Stack, requests requestlog.Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		expectations: expectations,
		requests:     requests,
		log:          logging.Nop(),
		maxBodySize:  DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ExpectationPath, h.handleRegister)
	mux.HandleFunc("DELETE "+ResetPath, h.handleReset)
	mux.HandleFunc("GET "+RequestPath+"count", h.handleCount)
	mux.HandleFunc("GET "+RequestPath+"{position}", h.handlePeek)
	mux.HandleFunc("DELETE "+RequestPath+"{position}", h.handlePop)
	h.control = mux

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isControlRequest(r.Method, r.URL.Path) {
		h.control.ServeHTTP(w, r)
		return
	}
	h.dispatch(w, r)
}

// isControlRequest reports whether method and path name one of the control
// operations. Any other method or path, including unknown /_request/ forms,
// is application traffic.
func isControlRequest(method, p string) bool {
	switch p {
	case ExpectationPath:
		return method == http.MethodPost
	case ResetPath:
		return method == http.MethodDelete
	}
	position, ok := strings.CutPrefix(p, RequestPath)
	if !ok {
		return false
	}
	switch method {
	case http.MethodGet:
		switch position {
		case "count", "first", "last", "latest":
			return true
		}
		_, numeric := parsePosition(position)
		return numeric
	case http.MethodDelete:
		return position == "first" || position == "last"
	}
	return false
}

// dispatch records an application request and answers it from the
// expectation stack.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.log.Warn("request body too large", "path", r.URL.Path, "limit", h.maxBodySize)
			h.record(r, body)
			httputil.WriteText(w, http.StatusRequestEntityTooLarge, bodyTooLargeBody)
			return
		}
		h.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
	}

	entry := h.record(r, body)

	match, ok := h.expectations.FindMatch(matchRequest(entry))
	if h.metrics != nil {
		h.metrics.ExpectationsActive.Set(float64(h.expectations.Len()))
	}
	if !ok {
		h.log.Debug("no matching expectation", "method", r.Method, "path", r.URL.Path)
		httputil.WriteNotFound(w, NoMatchBody)
		h.observeDispatch(r.Method, metrics.OutcomeUnmatched, started)
		return
	}

	h.log.Debug("expectation matched",
		"id", match.ID,
		"method", r.Method,
		"path", r.URL.Path,
		"count", match.Count,
	)
	writeResponse(w, r, &match.Response)
	h.observeDispatch(r.Method, metrics.OutcomeMatched, started)
}

func (h *Handler) record(r *http.Request, body []byte) *requestlog.Entry {
	entry := requestlog.NewEntry(r, body)
	h.requests.Append(entry)
	if h.metrics != nil {
		h.metrics.RequestLogEntries.Set(float64(h.requests.Count()))
	}
	return entry
}

func (h *Handler) observeDispatch(method, outcome string, started time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveDispatch(method, outcome, started)
	}
}

func (h *Handler) observeControl(op string) {
	if h.metrics != nil {
		h.metrics.ObserveControl(op)
	}
}

// matchRequest builds the predicate view of a recorded request.
func matchRequest(e *requestlog.Entry) *matching.Request {
	return &matching.Request{
		Method:    e.Method,
		Path:      e.Path,
		Query:     e.Query(),
		Header:    e.Headers,
		Body:      e.Body,
		Form:      e.Form,
		Host:      e.Server.Host,
		UserAgent: e.Server.UserAgent,
	}
}

// writeResponse writes a canned response after its delay. A client that
// goes away during the delay gets nothing.
func writeResponse(w http.ResponseWriter, r *http.Request, resp *expectation.Response) {
	if resp.DelayMs > 0 {
		timer := time.NewTimer(time.Duration(resp.DelayMs) * time.Millisecond)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	header := w.Header()
	for name, values := range resp.Headers {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	// No declared content type means none is sent, not a sniffed one.
	if _, ok := header["Content-Type"]; !ok {
		header["Content-Type"] = nil
	}
	if header.Get("Content-Length") == "" && header.Get("Transfer-Encoding") == "" {
		header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	w.WriteHeader(resp.Status())
	if resp.Body != "" && r.Method != http.MethodHead {
		_, _ = io.WriteString(w, resp.Body)
	}
}

// handleRegister implements POST /_expectation.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.observeControl(opRegister)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var err error
	if isMultipart(r) {
		err = r.ParseMultipartForm(maxMultipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.log.Warn("registration body too large", "limit", h.maxBodySize)
			httputil.WriteText(w, http.StatusRequestEntityTooLarge, bodyTooLargeBody)
			h.observeRegistration(false)
			return
		}
		// An unreadable form has no usable matcher field.
		h.rejectRegistration(w, &wire.RegistrationError{Reason: wire.ErrMatcherInvalid, Cause: err})
		return
	}

	def, err := wire.DecodeRegistration(r.PostForm)
	if err != nil {
		h.rejectRegistration(w, wire.AsRegistrationError(err))
		return
	}

	id, err := h.expectations.Register(def)
	if err != nil {
		h.rejectRegistration(w, wire.AsRegistrationError(err))
		return
	}

	h.log.Info("expectation registered", "id", id, "predicates", len(def.Matcher))
	if h.metrics != nil {
		h.metrics.ExpectationsActive.Set(float64(h.expectations.Len()))
	}
	h.observeRegistration(true)
	w.Header().Set(wire.ExpectationIDHeader, id)
	httputil.WriteEmpty(w, http.StatusCreated)
}

func (h *Handler) rejectRegistration(w http.ResponseWriter, re *wire.RegistrationError) {
	h.log.Warn("expectation rejected", "reason", re.Reason.Error(), "error", re.Cause)
	h.observeRegistration(false)
	httputil.WriteExpectationFailed(w, re.Reason.Error())
}

func (h *Handler) observeRegistration(accepted bool) {
	if h.metrics != nil {
		h.metrics.ObserveRegistration(accepted)
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// handleReset implements DELETE /_all.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.observeControl(opReset)
	h.expectations.Clear()
	h.requests.Clear()
	if h.metrics != nil {
		h.metrics.ExpectationsActive.Set(0)
		h.metrics.RequestLogEntries.Set(0)
	}
	h.log.Info("expectations and request log cleared")
	httputil.WriteEmpty(w, http.StatusOK)
}

// handleCount implements GET /_request/count.
func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	h.observeControl(opCount)
	httputil.WriteText(w, http.StatusOK, strconv.Itoa(h.requests.Count()))
}

// handlePeek implements GET /_request/{first,last,latest,n}.
func (h *Handler) handlePeek(w http.ResponseWriter, r *http.Request) {
	h.observeControl(opPeek)

	var (
		entry *requestlog.Entry
		err   error
	)
	switch pos := r.PathValue("position"); pos {
	case "first":
		entry, err = h.requests.First()
	case "last", "latest":
		entry, err = h.requests.Last()
	default:
		n, ok := parsePosition(pos)
		if !ok {
			httputil.WriteNotFound(w, requestNotFoundBody)
			return
		}
		entry, err = h.requests.At(n)
	}
	h.writeEntry(w, entry, err)
}

// handlePop implements DELETE /_request/{first,last}.
func (h *Handler) handlePop(w http.ResponseWriter, r *http.Request) {
	h.observeControl(opPop)

	var (
		entry *requestlog.Entry
		err   error
	)
	switch r.PathValue("position") {
	case "first":
		entry, err = h.requests.PopFirst()
	case "last":
		entry, err = h.requests.PopLast()
	default:
		httputil.WriteNotFound(w, requestNotFoundBody)
		return
	}
	if err == nil && h.metrics != nil {
		h.metrics.RequestLogEntries.Set(float64(h.requests.Count()))
	}
	h.writeEntry(w, entry, err)
}

func (h *Handler) writeEntry(w http.ResponseWriter, entry *requestlog.Entry, err error) {
	if err != nil {
		if !errors.Is(err, requestlog.ErrNotFound) {
			h.log.Error("request log lookup failed", "error", err)
		}
		httputil.WriteNotFound(w, requestNotFoundBody)
		return
	}

	data, err := wire.EncodeEntry(entry)
	if err != nil {
		h.log.Error("failed to encode recorded request", "seq", entry.Seq, "error", err)
		httputil.WriteText(w, http.StatusInternalServerError, "failed to encode recorded request")
		return
	}
	httputil.WriteBytes(w, http.StatusOK, wire.ContentType, data)
}

// parsePosition accepts non-negative decimal integers only.
func parsePosition(s string) (int, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
