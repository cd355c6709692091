package gateway

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

// Registry keys for mounted Stripe elements.
const (
	ElementCard  = "stripe.element.card"
	ElementIDeal = "stripe.element.ideal"
)

// ClientRegistry holds SDK client handles for one page: Stripe clients per
// publishable key, Google payments clients per environment, and mounted
// Stripe elements. Concurrent first use of a key creates a single client.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]any
	group   singleflight.Group
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]any),
	}
}

// Get returns the client cached under key, creating it with create on first use.
func (r *ClientRegistry) Get(key string, create func() (any, error)) (any, error) {
	if client, ok := r.Lookup(key); ok {
		return client, nil
	}

	client, err, _ := r.group.Do(key, func() (any, error) {
		if client, ok := r.Lookup(key); ok {
			return client, nil
		}
		client, err := create()
		if err != nil {
			return nil, err
		}
		r.Set(key, client)
		return client, nil
	})
	return client, err
}

// Lookup returns the client cached under key.
func (r *ClientRegistry) Lookup(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[key]
	return client, ok
}

// Set caches client under key, replacing any previous value.
func (r *ClientRegistry) Set(key string, client any) {
	r.mu.Lock()
	r.clients[key] = client
	r.mu.Unlock()
}

// Invalidate removes a client from the registry
func (r *ClientRegistry) Invalidate(key string) {
	r.mu.Lock()
	delete(r.clients, key)
	r.mu.Unlock()
}

// Clear removes all clients from the registry
func (r *ClientRegistry) Clear() {
	r.mu.Lock()
	r.clients = make(map[string]any)
	r.mu.Unlock()
}

// Stripe returns the Stripe client for publishableKey.
func (r *ClientRegistry) Stripe(libs *scripts.Libraries, publishableKey string) (sdk.Stripe, error) {
	client, err := r.Get("stripe:"+publishableKey, func() (any, error) {
		factory, err := libs.Stripe()
		if err != nil {
			return nil, err
		}
		return factory(publishableKey)
	})
	if err != nil {
		return nil, err
	}
	return client.(sdk.Stripe), nil
}

// Google returns the Google payments client for environment.
func (r *ClientRegistry) Google(libs *scripts.Libraries, environment string) (sdk.GooglePaymentsClient, error) {
	client, err := r.Get("google:"+environment, func() (any, error) {
		google, err := libs.Google()
		if err != nil {
			return nil, err
		}
		client, err := google.NewPaymentsClient(environment)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, &scripts.LibraryNotLoadedError{Library: "Google client"}
		}
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return client.(sdk.GooglePaymentsClient), nil
}

// SetElement records the element a later Tokenize reads from.
func (r *ClientRegistry) SetElement(key string, element sdk.StripeElement) {
	r.Set(key, element)
}

// Element returns a previously mounted element.
func (r *ClientRegistry) Element(key string) (sdk.StripeElement, error) {
	v, ok := r.Lookup(key)
	if !ok {
		return nil, NewGatewayError("stripe", codeMissingElement, "Stripe payment element is not defined")
	}
	element, ok := v.(sdk.StripeElement)
	if !ok {
		return nil, fmt.Errorf("registry key %s does not hold a Stripe element", key)
	}
	return element, nil
}
