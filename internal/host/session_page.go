package host

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Effect kinds recorded by SessionPage.
const (
	EffectScript       = "script"
	EffectAppend       = "append"
	EffectClass        = "class"
	EffectMount        = "mount"
	EffectNavigate     = "navigate"
	EffectReplaceState = "replace_state"
)

// Effect is one observable change a strategy made to the page.
type Effect struct {
	Kind   string         `json:"kind"`
	Target string         `json:"target,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
	At     time.Time      `json:"at"`
}

// Provider builds the global a script installs once it is injected.
type Provider func(page Page) any

// SessionPage is a server-side Page that records effects instead of touching
// a browser. One SessionPage models one page load of a shopper's checkout.
type SessionPage struct {
	mu          sync.RWMutex
	location    *url.URL
	navigatedTo string
	globals     map[string]any
	providers   map[string]Provider
	containers  map[string]*container
	inputs      map[string]map[string]string
	effects     []Effect
}

// PageOption configures a SessionPage.
type PageOption func(*SessionPage)

// WithElements declares the container IDs present on the page.
func WithElements(ids ...string) PageOption {
	return func(p *SessionPage) {
		for _, id := range ids {
			id = SelectorID(id)
			p.containers[id] = &container{id: id, page: p}
		}
	}
}

// WithProvider registers the global installed when a script exposing it is injected.
func WithProvider(global string, provider Provider) PageOption {
	return func(p *SessionPage) {
		p.providers[global] = provider
	}
}

// WithGlobal installs a global up front, as if its script were already on the page.
func WithGlobal(name string, value any) PageOption {
	return func(p *SessionPage) {
		p.globals[name] = value
	}
}

// NewSessionPage creates a page located at rawURL.
func NewSessionPage(rawURL string, opts ...PageOption) (*SessionPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("page url must be absolute: %q", rawURL)
	}

	p := &SessionPage{
		location:   u,
		globals:    make(map[string]any),
		providers:  make(map[string]Provider),
		containers: make(map[string]*container),
		inputs:     make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *SessionPage) Location() *url.URL {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u := *p.location
	return &u
}

func (p *SessionPage) Replace(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("navigation target is empty")
	}
	p.mu.Lock()
	p.navigatedTo = rawURL
	p.mu.Unlock()
	p.record(EffectNavigate, rawURL, nil)
	return nil
}

func (p *SessionPage) ReplaceState(rawURL string) {
	u, err := p.Location().Parse(rawURL)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.location = u
	p.mu.Unlock()
	p.record(EffectReplaceState, u.String(), nil)
}

func (p *SessionPage) InjectScript(_ context.Context, tag *ScriptTag) error {
	p.mu.Lock()
	provider, ok := p.providers[tag.Global]
	p.mu.Unlock()

	var global any
	if ok {
		global = provider(p)
	}

	p.mu.Lock()
	if global != nil {
		p.globals[tag.Global] = global
	}
	p.mu.Unlock()

	detail := map[string]any{"src": tag.Src}
	if len(tag.Attrs) > 0 {
		detail["attrs"] = tag.Attrs
	}
	p.record(EffectScript, tag.ID, detail)
	return nil
}

func (p *SessionPage) Global(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.globals[name]
	return v, ok
}

func (p *SessionPage) Element(id string) (Container, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.containers[SelectorID(id)]
	if !ok {
		return nil, false
	}
	return c, true
}

func (p *SessionPage) Input(selector string) map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inputs[SelectorID(selector)]
}

// SetInputs stores the values collected by mounted elements, keyed by selector.
func (p *SessionPage) SetInputs(inputs map[string]map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for selector, values := range inputs {
		p.inputs[SelectorID(selector)] = values
	}
}

// NavigatedTo returns the last navigation target, if any.
func (p *SessionPage) NavigatedTo() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.navigatedTo
}

// Effects returns a copy of everything recorded so far.
func (p *SessionPage) Effects() []Effect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Effect, len(p.effects))
	copy(out, p.effects)
	return out
}

// Click triggers the click handlers of every node appended to the element.
func (p *SessionPage) Click(ctx context.Context, id string) error {
	p.mu.RLock()
	c, ok := p.containers[SelectorID(id)]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("element %q not found", id)
	}

	clicked := false
	for _, node := range c.snapshot() {
		if node.OnClick != nil {
			node.OnClick(ctx)
			clicked = true
		}
	}
	if !clicked {
		return fmt.Errorf("element %q has nothing to click", id)
	}
	return nil
}

// RecordMount notes that a provider element was mounted into a container.
func (p *SessionPage) RecordMount(selector, elementType string) error {
	if _, ok := p.Element(selector); !ok {
		return fmt.Errorf("DOM element with '%s' ID not found", SelectorID(selector))
	}
	p.record(EffectMount, SelectorID(selector), map[string]any{"type": elementType})
	return nil
}

func (p *SessionPage) record(kind, target string, detail map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects = append(p.effects, Effect{Kind: kind, Target: target, Detail: detail, At: time.Now()})
}

type container struct {
	mu      sync.Mutex
	id      string
	classes []string
	nodes   []*Node
	page    *SessionPage
}

func (c *container) ID() string { return c.id }

func (c *container) AddClass(class string) {
	c.mu.Lock()
	c.classes = append(c.classes, class)
	c.mu.Unlock()
	c.page.record(EffectClass, c.id, map[string]any{"class": class})
}

func (c *container) Append(node *Node) {
	c.mu.Lock()
	c.nodes = append(c.nodes, node)
	c.mu.Unlock()

	detail := map[string]any{"kind": node.Kind}
	if len(node.Attrs) > 0 {
		detail["attrs"] = node.Attrs
	}
	c.page.record(EffectAppend, c.id, detail)
}

func (c *container) snapshot() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

var _ Page = (*SessionPage)(nil)
