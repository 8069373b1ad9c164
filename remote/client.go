package remote

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2/json2"
)

type clientKey struct {
	addr   string
	secret string
}

var (
	clientsMu sync.Mutex
	clients   = make(map[clientKey]*client)
)

// dial returns the cached connection for (addr, secret), creating it on
// first use. Connections live for the rest of the process (or until
// Reset drops them).
func dial(addr, secret string) *client {
	key := clientKey{addr: addr, secret: secret}

	clientsMu.Lock()
	defer clientsMu.Unlock()

	if c, found := clients[key]; found {
		return c
	}

	c := &client{
		client: new(http.Client),
		url:    "http://" + addr + rpcEndpoint,
		secret: secret,
	}

	clients[key] = c

	return c
}

func resetClients() {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	for key, c := range clients {
		c.client.CloseIdleConnections()

		delete(clients, key)
	}
}

type client struct {
	client *http.Client
	url    string
	secret string
}

// call performs one synchronous JSON-RPC round trip. It blocks until the
// remote side replies; there is no timeout, a hung remote call hangs its
// caller.
func (c *client) call(method string, args, reply any) error {
	message, err := json2.EncodeClientRequest(method, args)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", c.url, bytes.NewBuffer(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authHeader, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc endpoint returned %s", resp.Status)
	}

	return json2.DecodeClientResponse(resp.Body, reply)
}
