package httputil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type HTTPServer struct {
	listener net.Listener
	srv      *http.Server
	closed   bool
}

// StartHTTPServer starts a HTTP server on the given address, serving the given handler.
// The server is started immediately, and the returned HTTPServer
// can be used to stop it gracefully.
func StartHTTPServer(addr string, handler http.Handler) (*HTTPServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Join(errors.New("failed to bind to address"), err)
	}
	srvCtx, srvCancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       time.Second * 15,
		ReadHeaderTimeout: time.Second * 15,
		WriteTimeout:      0, // the withdrawal request route blocks on chain confirmation
		IdleTimeout:       time.Minute,
		BaseContext: func(listener net.Listener) context.Context {
			return srvCtx
		},
	}
	out := &HTTPServer{listener: listener, srv: srv}
	go func() {
		err := srv.Serve(listener)
		srvCancel()
		if errors.Is(err, http.ErrServerClosed) {
			out.closed = true
		} else {
			panic(err)
		}
	}()
	return out, nil
}

func (s *HTTPServer) Closed() bool {
	return s.closed
}

// Stop will wait for server connections to close, up to the given deadline of the ctx.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Close force-closes the server, without waiting for connections to close.
func (s *HTTPServer) Close() error {
	return s.srv.Close()
}

func (s *HTTPServer) Addr() net.Addr {
	return s.listener.Addr()
}
