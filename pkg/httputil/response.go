// Package httputil provides shared HTTP response helpers for the control plane.
package httputil

import (
	"net/http"
	"strconv"
)

// TextContentType is the content type of every plain-text control response.
const TextContentType = "text/plain; charset=utf-8"

// WriteText writes a plain-text response with the given status code.
func WriteText(w http.ResponseWriter, status int, body string) {
	WriteBytes(w, status, TextContentType, []byte(body))
}

// WriteBytes writes body with an explicit content type and length.
func WriteBytes(w http.ResponseWriter, status int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// WriteEmpty writes a response with no body.
func WriteEmpty(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(status)
}

// WriteNotFound writes a 404 with a plain-text message.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteText(w, http.StatusNotFound, message)
}

// WriteExpectationFailed writes a 417 with a plain-text message.
func WriteExpectationFailed(w http.ResponseWriter, message string) {
	WriteText(w, http.StatusExpectationFailed, message)
}
