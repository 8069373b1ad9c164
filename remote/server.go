package remote

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"os"

	"github.com/moi90/richer-progress/internal/randtoken"

	rpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"golang.org/x/sync/errgroup"
)

const (
	rpcEndpoint = "/rpc"
	authHeader  = "X-Auth-Key"

	secretBytes = 32
)

// NewRegistry creates a registry with a fresh shared secret and starts
// its JSON-RPC endpoint on an ephemeral loopback port. The endpoint is
// served from a background goroutine until Close is called, so it never
// blocks the owning process's primary work.
func NewRegistry() (*Registry, error) {
	secret, err := randtoken.New(secretBytes)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	r := &Registry{
		entries: make(map[string]*entry),
		ids:     make(map[any]string),
		addr:    listener.Addr().String(),
		secret:  secret,
		pid:     os.Getpid(),
	}

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")

	for name, svc := range map[string]any{
		"Registry": &RegistryService{reg: r},
		"Task":     &TaskService{reg: r},
		"Progress": &ProgressService{reg: r},
	} {
		if err := rpcServer.RegisterService(svc, name); err != nil {
			listener.Close()

			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle(rpcEndpoint, r.requireSecret(rpcServer))

	r.srv = &http.Server{Handler: mux}
	r.group = new(errgroup.Group)

	r.group.Go(func() error {
		if err := r.srv.Serve(listener); err != http.ErrServerClosed {
			// Error starting or closing listener
			return err
		}

		return nil
	})

	return r, nil
}

// Close shuts down the endpoint and waits for the serving goroutine.
func (r *Registry) Close() error {
	if err := r.srv.Shutdown(context.Background()); err != nil {
		return err
	}

	return r.group.Wait()
}

func (r *Registry) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		given := []byte(req.Header.Get(authHeader))

		if subtle.ConstantTimeCompare(given, []byte(r.secret)) != 1 {
			http.Error(w, "invalid auth key", http.StatusUnauthorized)

			return
		}

		r.warnIfForked()

		next.ServeHTTP(w, req)
	})
}
