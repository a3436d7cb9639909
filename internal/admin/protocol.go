// Package admin implements the reflector's administrative wire protocol:
// a CR-LF, HTTP-like request/response grammar, the reflector-wide
// synchronous request gate, and the per-connection server that transports
// that grammar over plain TCP.
package admin

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/dantte-lp/goreflector/internal/errctx"
)

// Proto is the protocol version string every request/response line
// carries, mirroring the original RAP/1.0 wire identifier.
const Proto = "RAP/1.0"

// Request is one parsed administrative request (§6).
type Request struct {
	Method  string
	Proto   string
	Headers textproto.MIMEHeader
	Body    []byte
}

// Header returns a header value, honoring the canonical MIME form.
func (r *Request) Header(name string) string {
	return r.Headers.Get(name)
}

// Sync reports whether the request set "Sync: on" (§5, §6).
func (r *Request) Sync() bool {
	return strings.EqualFold(strings.TrimSpace(r.Header("Sync")), "on")
}

// ID returns the request's "Id" header, echoed verbatim on the response
// (§6 "an id echoing the request").
func (r *Request) ID() string {
	return r.Header("Id")
}

// Response codes (§6).
const (
	CodeInformational = 100
	CodeLogMessage    = 101
	CodeOK            = 200
	CodeBadRequest    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 407
	CodeInternalError = 500
	CodeNotImplemented = 501
)

// Response is one administrative response (§6).
type Response struct {
	Code    int
	ID      string
	Headers map[string]string
	Body    []byte
}

// NewResponse builds a Response carrying code and echoing req's id.
func NewResponse(req *Request, code int) Response {
	var id string
	if req != nil {
		id = req.ID()
	}
	return Response{Code: code, ID: id, Headers: map[string]string{}}
}

// ReadRequest parses one request from r: a method line, zero or more
// headers, a blank line, and an optional Content-Length-bounded body
// (§6).
func ReadRequest(r *textproto.Reader) (*Request, error) {
	line, err := r.ReadLine()
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errctx.Wrap(errctx.New(), errctx.KindProtocolParseLine,
			fmt.Errorf("admin: read method line: %w", err))
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, errctx.Wrap(errctx.New(), errctx.KindProtocolParseLine,
			fmt.Errorf("admin: malformed method line %q", line))
	}

	headers, err := r.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, errctx.Wrap(errctx.New(), errctx.KindProtocolParseHeader,
			fmt.Errorf("admin: read headers: %w", err))
	}

	req := &Request{
		Method:  strings.ToUpper(fields[0]),
		Proto:   fields[1],
		Headers: headers,
	}

	if cl := headers.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, errctx.Wrap(errctx.New(), errctx.KindProtocolParseContent,
				fmt.Errorf("admin: invalid Content-Length %q", cl))
		}
		body := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r.R, body); err != nil {
				return nil, errctx.Wrap(errctx.New(), errctx.KindProtocolParseContent,
					fmt.Errorf("admin: read body: %w", err))
			}
		}
		req.Body = body
	}

	return req, nil
}

// WriteResponse serialises resp onto w, terminating headers with a blank
// line and appending Body verbatim, sized by an explicit Content-Length
// header when non-empty (§6).
func WriteResponse(w *bufio.Writer, resp Response) error {
	if _, err := fmt.Fprintf(w, "%d %s\r\n", resp.Code, Proto); err != nil {
		return errctx.Wrap(errctx.New(), errctx.KindProtocolResponse, err)
	}
	if resp.ID != "" {
		if _, err := fmt.Fprintf(w, "Id: %s\r\n", resp.ID); err != nil {
			return errctx.Wrap(errctx.New(), errctx.KindProtocolResponse, err)
		}
	}
	for name, value := range resp.Headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", name, value); err != nil {
			return errctx.Wrap(errctx.New(), errctx.KindProtocolResponse, err)
		}
	}
	if len(resp.Body) > 0 {
		if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n", len(resp.Body)); err != nil {
			return errctx.Wrap(errctx.New(), errctx.KindProtocolResponse, err)
		}
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return errctx.Wrap(errctx.New(), errctx.KindProtocolResponse, err)
	}
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			return errctx.Wrap(errctx.New(), errctx.KindProtocolResponse, err)
		}
	}
	return w.Flush()
}

// Recognised methods (§6).
const (
	MethodStart     = "START"
	MethodStop      = "STOP"
	MethodRestart   = "RESTART"
	MethodStatus    = "STATUS"
	MethodList      = "LIST"
	MethodAvail     = "AVAIL"
	MethodLog       = "LOG"
	MethodClients   = "CLIENTS"
	MethodACL       = "ACL"
	MethodSession   = "SESSION"
	MethodProcess   = "PROCESS"
	MethodPass      = "PASS"
	MethodLogin     = "LOGIN"
	MethodLogout    = "LOGOUT"
	MethodKeepAlive = "KEEP-ALIVE"
)
