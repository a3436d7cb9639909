package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"sync"
	"sync/atomic"
)

// Client is a plain-TCP caller of the admin protocol (§6), the
// goreflectorctl counterpart to internal/admin.Server. It replaces the
// donor CLI's ConnectRPC client (cmd/gobfdctl/commands/root.go), which
// dialed generated bfdv1connect stubs this pack does not carry — there
// is no equivalent wire client to ground on, so this speaks the text
// protocol directly using the same net/textproto reader the Server uses.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *textproto.Reader
	writer *bufio.Writer

	idSeq atomic.Uint64
}

// Dial opens a TCP connection to an admin server listening at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("admin: dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		reader: textproto.NewReader(bufio.NewReader(conn)),
		writer: bufio.NewWriter(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one request built from method and headers (plus an optional
// body) and returns the parsed response. Requests on one Client are
// serialised, matching the server's per-connection sequential handling
// (§9's arrival-order contract runs both ways).
func (c *Client) Do(method string, headers map[string]string, body []byte) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := strconv.FormatUint(c.idSeq.Add(1), 10)

	if _, err := fmt.Fprintf(c.writer, "%s %s\r\n", method, Proto); err != nil {
		return Response{}, fmt.Errorf("admin client: write method line: %w", err)
	}
	if _, err := fmt.Fprintf(c.writer, "Id: %s\r\n", id); err != nil {
		return Response{}, fmt.Errorf("admin client: write id header: %w", err)
	}
	for name, value := range headers {
		if _, err := fmt.Fprintf(c.writer, "%s: %s\r\n", name, value); err != nil {
			return Response{}, fmt.Errorf("admin client: write header %s: %w", name, err)
		}
	}
	if len(body) > 0 {
		if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n", len(body)); err != nil {
			return Response{}, fmt.Errorf("admin client: write content-length: %w", err)
		}
	}
	if _, err := c.writer.WriteString("\r\n"); err != nil {
		return Response{}, fmt.Errorf("admin client: write header terminator: %w", err)
	}
	if len(body) > 0 {
		if _, err := c.writer.Write(body); err != nil {
			return Response{}, fmt.Errorf("admin client: write body: %w", err)
		}
	}
	if err := c.writer.Flush(); err != nil {
		return Response{}, fmt.Errorf("admin client: flush: %w", err)
	}

	return c.readResponse()
}

func (c *Client) readResponse() (Response, error) {
	line, err := c.reader.ReadLine()
	if err != nil {
		return Response{}, fmt.Errorf("admin client: read status line: %w", err)
	}

	var code int
	var proto string
	if _, err := fmt.Sscanf(line, "%d %s", &code, &proto); err != nil {
		return Response{}, fmt.Errorf("admin client: malformed status line %q: %w", line, err)
	}

	mimeHeaders, err := c.reader.ReadMIMEHeader()
	if err != nil && len(mimeHeaders) == 0 {
		return Response{}, fmt.Errorf("admin client: read headers: %w", err)
	}

	resp := Response{Code: code, ID: mimeHeaders.Get("Id"), Headers: map[string]string{}}
	for name := range mimeHeaders {
		if name == "Id" || name == "Content-Length" {
			continue
		}
		resp.Headers[name] = mimeHeaders.Get(name)
	}

	if cl := mimeHeaders.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return Response{}, fmt.Errorf("admin client: invalid content-length %q", cl)
		}
		if n > 0 {
			body := make([]byte, n)
			if _, err := io.ReadFull(c.reader.R, body); err != nil {
				return Response{}, fmt.Errorf("admin client: read body: %w", err)
			}
			resp.Body = body
		}
	}

	return resp, nil
}
