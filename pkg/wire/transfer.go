package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getmockd/httpmock/pkg/requestlog"
)

// ContentType is the media type of a serialized recorded request.
const ContentType = "text/plain; charset=utf-8"

// ErrMalformedTransfer is returned when a transfer payload cannot be decoded.
var ErrMalformedTransfer = errors.New("malformed recorded request")

// RecordedRequest is the transfer form of a recorded request: the raw
// HTTP/1.x message plus the metadata a plain message cannot carry.
type RecordedRequest struct {
	// Request is the raw message: request line, headers, blank line, body.
	// It travels base64 encoded so binary bodies survive JSON.
	Request []byte `json:"request"`

	// Server holds connection and server metadata.
	Server requestlog.ServerInfo `json:"server"`

	// Enclosure holds the decoded form fields of the body.
	Enclosure url.Values `json:"enclosure"`
}

// headers rewritten by RawMessage rather than copied.
var framingHeaders = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
}

// RawMessage renders an entry as an HTTP/1.x request message. Headers are
// written in canonical-name order; the body is framed with Content-Length.
func RawMessage(e *requestlog.Entry) []byte {
	var b bytes.Buffer

	proto := e.Proto
	if !strings.HasPrefix(proto, "HTTP/1.") {
		proto = "HTTP/1.1"
	}
	target := e.RequestURI
	if target == "" {
		target = e.Path
		if e.RawQuery != "" {
			target += "?" + e.RawQuery
		}
	}
	fmt.Fprintf(&b, "%s %s %s\r\n", e.Method, target, proto)

	if e.Host != "" {
		fmt.Fprintf(&b, "Host: %s\r\n", e.Host)
	}

	names := make([]string, 0, len(e.Headers))
	for name := range e.Headers {
		if !framingHeaders[http.CanonicalHeaderKey(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range e.Headers[name] {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}

	if len(e.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(e.Body))
	}
	b.WriteString("\r\n")
	b.Write(e.Body)
	return b.Bytes()
}

// NewRecordedRequest builds the transfer form of an entry.
func NewRecordedRequest(e *requestlog.Entry) *RecordedRequest {
	enclosure := url.Values{}
	for k, v := range e.Form {
		enclosure[k] = append([]string(nil), v...)
	}
	return &RecordedRequest{
		Request:   RawMessage(e),
		Server:    e.Server,
		Enclosure: enclosure,
	}
}

// EncodeEntry serializes an entry for a control-plane response body.
func EncodeEntry(e *requestlog.Entry) ([]byte, error) {
	data, err := json.Marshal(NewRecordedRequest(e))
	if err != nil {
		return nil, fmt.Errorf("failed to encode recorded request: %w", err)
	}
	return data, nil
}

// DecodeRecordedRequest parses a control-plane response body.
func DecodeRecordedRequest(data []byte) (*RecordedRequest, error) {
	var rr RecordedRequest
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransfer, err)
	}
	if len(rr.Request) == 0 {
		return nil, fmt.Errorf("%w: missing request message", ErrMalformedTransfer)
	}
	return &rr, nil
}

// HTTPRequest reconstructs the request. The server metadata is applied on
// top of the raw message: host and port, basic-auth credentials, user agent
// and remote address. For POST requests carrying form fields, the body is
// replaced by the urlencoded enclosure. The result has an empty RequestURI
// so it can be replayed with an http.Client.
func (rr *RecordedRequest) HTTPRequest() (*http.Request, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(rr.Request)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransfer, err)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransfer, err)
	}
	_ = req.Body.Close()

	s := rr.Server
	if s.Host != "" {
		req.Host = joinHostPort(s.Host, s.Port)
	}
	req.URL.Scheme = "http"
	req.URL.Host = req.Host
	req.RemoteAddr = s.RemoteAddr
	req.RequestURI = ""

	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	if s.AuthUser != "" {
		req.SetBasicAuth(s.AuthUser, s.AuthPassword)
	}

	if req.Method == http.MethodPost && len(rr.Enclosure) > 0 {
		body = []byte(rr.Enclosure.Encode())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	setBody(req, body)

	return req, nil
}

func setBody(req *http.Request, body []byte) {
	req.ContentLength = int64(len(body))
	if len(body) == 0 {
		req.Body = http.NoBody
		req.Header.Del("Content-Length")
		return
	}
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}

func joinHostPort(host, port string) string {
	if port == "" || port == "80" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
