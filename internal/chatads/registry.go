package chatads

import (
	"sync"

	"github.com/getchatads/chatads-relay/internal/config"
	log "github.com/getchatads/chatads-relay/internal/logging"
)

// Registry hands out one Client per credential so breaker state and
// connection reuse survive across calls. Construction options are captured
// once and applied to every client it creates.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	cfg     config.ChatAdsConfig
	opts    []ClientOption
}

// NewRegistry creates an empty registry that builds clients from cfg.
func NewRegistry(cfg config.ChatAdsConfig, opts ...ClientOption) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		cfg:     cfg,
		opts:    opts,
	}
}

// Get returns the client for credential, creating it on first use.
func (r *Registry) Get(credential string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[credential]; ok {
		return client
	}
	client := NewClient(credential, r.cfg, r.opts...)
	r.clients[credential] = client
	log.Debugf("created chatads client for %s (%d active)",
		log.MaskCredential(credential), len(r.clients))
	return client
}

// Clear drops every cached client and releases idle pooled connections.
// Breaker state is discarded with the clients; the next Get starts fresh.
func (r *Registry) Clear() {
	r.mu.Lock()
	count := len(r.clients)
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	sharedTransport.CloseIdleConnections()
	if count > 0 {
		log.Debugf("cleared %d chatads client(s)", count)
	}
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
