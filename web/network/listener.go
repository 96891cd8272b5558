// Package network provides listener helpers for the web server.
package network

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/http"
	"sync"
)

// RedirectListener wraps the raw TCP listener of a TLS server. Connections
// that open with a plain HTTP request get a 307 to the https:// URL and are
// closed; everything else is passed through to the TLS layer untouched.
type RedirectListener struct {
	net.Listener
}

func NewRedirectListener(l net.Listener) net.Listener {
	return &RedirectListener{Listener: l}
}

func (l *RedirectListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &redirectConn{Conn: conn}, nil
}

// redirectConn peeks at the first read to spot plain HTTP.
type redirectConn struct {
	net.Conn

	once    sync.Once
	peeked  []byte
	readErr error
}

func (c *redirectConn) peek() {
	buf := make([]byte, 2048)
	n, err := c.Conn.Read(buf)
	c.peeked = buf[:n]
	if err != nil {
		c.readErr = err
		return
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(c.peeked)))
	if err != nil {
		return
	}
	resp := http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
	}
	resp.Header.Set("Location", fmt.Sprintf("https://%s%s", req.Host, req.RequestURI))
	_ = resp.Write(c.Conn)
	_ = c.Conn.Close()
	c.peeked = nil
	c.readErr = net.ErrClosed
}

func (c *redirectConn) Read(buf []byte) (int, error) {
	c.once.Do(c.peek)

	if len(c.peeked) > 0 {
		n := copy(buf, c.peeked)
		c.peeked = c.peeked[n:]
		return n, nil
	}
	if c.readErr != nil {
		err := c.readErr
		c.readErr = nil
		return 0, err
	}
	return c.Conn.Read(buf)
}
