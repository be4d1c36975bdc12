package requestlog

import (
	"bytes"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxMultipartMemory bounds in-memory parsing of multipart form values.
const maxMultipartMemory = 32 << 20

// Entry captures one application request for later inspection.
// Entries are immutable once appended to a Log.
type Entry struct {
	// Seq is the append sequence number assigned by the Log.
	Seq int64 `json:"seq"`

	// ReceivedAt is when the request was received.
	ReceivedAt time.Time `json:"receivedAt"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// RequestURI is the unmodified request-target of the request line.
	RequestURI string `json:"requestUri"`

	// Path is the decoded URL path.
	Path string `json:"path"`

	// RawQuery is the encoded query string without the leading '?'.
	RawQuery string `json:"rawQuery,omitempty"`

	// Proto is the protocol version, e.g. "HTTP/1.1".
	Proto string `json:"proto"`

	// Host is the Host header (or authority) the client addressed.
	Host string `json:"host"`

	// Headers are the request headers (multi-value).
	Headers http.Header `json:"headers,omitempty"`

	// Body is the raw request body.
	Body []byte `json:"body,omitempty"`

	// Form holds decoded urlencoded or multipart form fields, nil otherwise.
	Form url.Values `json:"form,omitempty"`

	// Server describes the connection the request arrived on.
	Server ServerInfo `json:"server"`
}

// ServerInfo is the connection and server metadata recorded with a request.
type ServerInfo struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	ServerName   string `json:"serverName"`
	ServerPort   string `json:"serverPort"`
	RemoteAddr   string `json:"remoteAddr"`
	UserAgent    string `json:"userAgent,omitempty"`
	AuthUser     string `json:"authUser,omitempty"`
	AuthPassword string `json:"authPassword,omitempty"`
	Protocol     string `json:"protocol"`
}

// Query returns the parsed query string.
func (e *Entry) Query() url.Values {
	q, _ := url.ParseQuery(e.RawQuery)
	return q
}

// NewEntry captures r. The body must already have been read by the caller
// since r.Body can only be consumed once.
func NewEntry(r *http.Request, body []byte) *Entry {
	e := &Entry{
		ReceivedAt: time.Now(),
		Method:     r.Method,
		RequestURI: r.RequestURI,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Proto:      r.Proto,
		Host:       r.Host,
		Headers:    r.Header.Clone(),
		Body:       body,
		Form:       decodeForm(r.Header.Get("Content-Type"), body),
	}
	if e.RequestURI == "" {
		e.RequestURI = r.URL.RequestURI()
	}
	if e.Headers == nil {
		e.Headers = http.Header{}
	}

	e.Server = serverInfo(r)
	return e
}

func serverInfo(r *http.Request) ServerInfo {
	info := ServerInfo{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Protocol:   r.Proto,
	}

	if user, pass, ok := r.BasicAuth(); ok {
		info.AuthUser = user
		info.AuthPassword = pass
	}

	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if host, port, err := net.SplitHostPort(addr.String()); err == nil {
			info.ServerName = host
			info.ServerPort = port
		}
	}

	info.Host, info.Port = splitHostPort(r.Host)
	if info.Port == "" {
		info.Port = info.ServerPort
	}
	if info.Port == "" {
		info.Port = strconv.Itoa(defaultPort(r))
	}
	return info
}

func splitHostPort(hostport string) (string, string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.Trim(hostport, "[]"), ""
	}
	return host, port
}

func defaultPort(r *http.Request) int {
	if r.TLS != nil {
		return 443
	}
	return 80
}

// decodeForm decodes urlencoded and multipart bodies. Any other content
// type, or a body that fails to decode, yields nil.
func decodeForm(contentType string, body []byte) url.Values {
	if contentType == "" || len(body) == 0 {
		return nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil
		}
		return values
	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return nil
		}
		form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxMultipartMemory)
		if err != nil {
			return nil
		}
		defer func() { _ = form.RemoveAll() }()
		return url.Values(form.Value)
	}
	return nil
}
