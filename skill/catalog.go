package skill

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/skillflow/types"
)

// Catalog is a thread-safe index of skill handlers. It supports registering,
// retrieving, and listing handlers; the built-in set is registered at compile
// time by the embedding application.
type Catalog struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{handlers: make(map[string]Handler)}
}

// Register adds a handler to the catalog under its own name.
// If a handler with the same name already exists, it is replaced.
func (c *Catalog) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	name := h.Name()
	if name == "" {
		return fmt.Errorf("handler has empty name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = h
	return nil
}

// Get retrieves a handler by name.
func (c *Catalog) Get(name string) (Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[name]
	return h, ok
}

// List returns the registered skill names in sorted order.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the Info of every registered skill, sorted by name.
func (c *Catalog) Describe() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	infos := make([]Info, 0, len(c.handlers))
	for _, h := range c.handlers {
		infos = append(infos, h.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Len returns the number of registered handlers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Unregister removes a handler by name. Intended for tests and embedders;
// nothing in the platform unregisters at runtime.
func (c *Catalog) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, name)
}

// HealthStatus is the outcome of one skill's upstream probe.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// healthCheckParallelism bounds concurrent upstream probes.
const healthCheckParallelism = 4

// HealthCheck probes every registered skill that implements HealthChecker,
// resolving its client through resolver. Skills without a resolvable client
// report unhealthy with the resolution error. The probes run concurrently
// with bounded parallelism; ctx cancellation stops the sweep.
func (c *Catalog) HealthCheck(ctx context.Context, resolver *Resolver) map[string]HealthStatus {
	c.mu.RLock()
	checkers := make(map[string]Handler, len(c.handlers))
	for name, h := range c.handlers {
		if _, ok := h.(HealthChecker); ok {
			checkers[name] = h
		}
	}
	c.mu.RUnlock()

	var mu sync.Mutex
	results := make(map[string]HealthStatus, len(checkers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(healthCheckParallelism)

	for name, h := range checkers {
		g.Go(func() error {
			status := HealthStatus{Healthy: true, CheckedAt: time.Now()}

			var client Client
			if h.Info().RequiresClient {
				var err error
				if resolver == nil {
					err = types.NewError(types.ErrProviderNotConfigured,
						fmt.Sprintf("no client resolver configured for skill %q", name))
				} else {
					client, err = resolver.Resolve(name)
				}
				if err != nil {
					status.Healthy = false
					status.Error = err.Error()
					mu.Lock()
					results[name] = status
					mu.Unlock()
					return nil
				}
			}

			if err := h.(HealthChecker).HealthCheck(gctx, client); err != nil {
				status.Healthy = false
				status.Error = err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
