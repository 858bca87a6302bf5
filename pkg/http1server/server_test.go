package http1server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/WhileEndless/httpwire/pkg/headers"
)

func echoMethodHandler(req *headers.Headers) (int, *headers.Headers) {
	resp := headers.New()
	if method, ok, _ := req.GetOnly(":method"); ok {
		resp.Append("x-method", method.Value, 0)
	}
	return 200, resp
}

func TestHandleConnectionSingleRequest(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(Config{})
	s.HandleFunc(echoMethodHandler)
	s.wg.Add(1)
	go s.handleConnection(server)

	if _, err := client.Write([]byte("GET / HTTP/1.1\r\nhost: example.com\r\nconnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	status, hdrs := readResponse(t, client)
	if status != "200" {
		t.Fatalf("status = %q, want 200", status)
	}
	if got := headerValue(hdrs, "x-method"); got != "GET" {
		t.Fatalf("x-method = %q, want GET", got)
	}
	if got := headerValue(hdrs, "connection"); got != "close" {
		t.Fatalf("connection = %q, want close", got)
	}
}

func TestHandleConnectionKeepsAliveAcrossRequests(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(Config{})
	s.HandleFunc(echoMethodHandler)
	s.wg.Add(1)
	go s.handleConnection(server)

	for i, method := range []string{"GET", "POST"} {
		req := method + " /thing HTTP/1.1\r\nhost: example.com\r\n\r\n"
		if _, err := client.Write([]byte(req)); err != nil {
			t.Fatalf("request %d: write: %v", i, err)
		}
		status, hdrs := readResponse(t, client)
		if status != "200" {
			t.Fatalf("request %d: status = %q, want 200", i, status)
		}
		if got := headerValue(hdrs, "x-method"); got != method {
			t.Fatalf("request %d: x-method = %q, want %s", i, got, method)
		}
	}
}

func TestHandleConnectionMaxRequestsClosesConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(Config{MaxRequests: 1})
	s.HandleFunc(echoMethodHandler)
	s.wg.Add(1)
	go s.handleConnection(server)

	if _, err := client.Write([]byte("GET / HTTP/1.1\r\nhost: example.com\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	readResponse(t, client)

	// The server has served its one allowed request and returned,
	// closing its end; a further read should fail once the pipe notices
	// the peer is gone.
	deadline := time.Now().Add(time.Second)
	client.SetWriteDeadline(deadline)
	client.SetReadDeadline(deadline)
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Fatalf("expected read on closed connection to fail")
	}
}

func TestHandleConnectionMalformedRequestClosesConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := New(Config{})
	s.HandleFunc(echoMethodHandler)
	s.wg.Add(1)
	go s.handleConnection(server)

	if _, err := client.Write([]byte("not a request\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Fatalf("expected read to fail after malformed request closed the connection")
	}
}

// readResponse reads one CRLF-terminated status line plus header block
// off conn using bufio, parsing just enough to let the test assertions
// inspect the status code and header values; it isn't meant to be a
// second implementation of pkg/http1's own parser.
func readResponse(t *testing.T, conn net.Conn) (status string, hdrs map[string]string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if len(statusLine) < 13 {
		t.Fatalf("status line too short: %q", statusLine)
	}
	status = statusLine[9:12]

	hdrs = map[string]string{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read header line: %v", err)
		}
		if line == "\r\n" {
			break
		}
		colon := -1
		for i, b := range line {
			if b == ':' {
				colon = i
				break
			}
		}
		if colon < 0 {
			t.Fatalf("malformed header line: %q", line)
		}
		name := line[:colon]
		value := line[colon+1:]
		for len(value) > 0 && (value[0] == ' ' || value[0] == '\t') {
			value = value[1:]
		}
		for len(value) > 0 && (value[len(value)-1] == '\n' || value[len(value)-1] == '\r') {
			value = value[:len(value)-1]
		}
		hdrs[name] = value
	}
	return status, hdrs
}

func headerValue(hdrs map[string]string, name string) string {
	return hdrs[name]
}
