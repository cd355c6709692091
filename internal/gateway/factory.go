package gateway

import (
	"sort"
	"sync"

	"checkout-service/internal/models"
)

// AnyGateway registers a constructor used for a method whatever gateway the
// store configured.
const AnyGateway = "*"

type pairKey struct {
	method  string
	gateway string
}

// Registry maps (method, gateway) pairs to strategy constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[pairKey]Constructor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[pairKey]Constructor),
	}
}

// DefaultRegistry returns a registry with every built-in strategy.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(models.MethodCard, models.GatewayStripe, NewStripeCard)
	r.Register(models.MethodCard, models.GatewayQuickpay, NewQuickpayCard)
	r.Register(models.MethodIDeal, models.GatewayStripe, NewStripeIDeal)
	r.Register(models.MethodBancontact, models.GatewayStripe, NewStripeBancontact)
	r.Register(models.MethodKlarna, models.GatewayStripe, NewStripeKlarna)
	r.Register(models.MethodKlarna, models.GatewayKlarna, NewKlarnaDirect)
	r.Register(models.MethodPayPal, models.GatewayBraintree, NewBraintreePayPal)
	r.Register(models.MethodPayPal, AnyGateway, NewPayPalDirect)
	r.Register(models.MethodGoogle, models.GatewayStripe, NewStripeGoogle)
	r.Register(models.MethodGoogle, models.GatewayBraintree, NewBraintreeGoogle)
	r.Register(models.MethodApple, models.GatewayStripe, NewStripeApple)
	r.Register(models.MethodApple, models.GatewayBraintree, NewBraintreeApple)
	r.Register(models.MethodPaysafecard, AnyGateway, NewPaysafecardDirect)
	r.Register(models.MethodAmazon, AnyGateway, NewAmazonDirect)

	return r
}

// Register adds or replaces the constructor for (method, gateway). Use
// AnyGateway to match every gateway without an exact registration.
func (r *Registry) Register(method, gateway string, ctor Constructor) {
	r.mu.Lock()
	r.constructors[pairKey{method, gateway}] = ctor
	r.mu.Unlock()
}

// Resolve returns the constructor for (method, gateway). An exact pair wins
// over an AnyGateway registration.
func (r *Registry) Resolve(method, gateway string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ctor, ok := r.constructors[pairKey{method, gateway}]; ok {
		return ctor, true
	}
	ctor, ok := r.constructors[pairKey{method, AnyGateway}]
	return ctor, ok
}

// Pair is a registered (method, gateway) combination.
type Pair struct {
	Method      string `json:"method"`
	Gateway     string `json:"gateway"`
	DisplayName string `json:"display_name"`
}

// Pairs lists registered pairs sorted by method, then gateway.
func (r *Registry) Pairs() []Pair {
	r.mu.RLock()
	pairs := make([]Pair, 0, len(r.constructors))
	for key := range r.constructors {
		pairs = append(pairs, Pair{
			Method:      key.method,
			Gateway:     key.gateway,
			DisplayName: GetPaymentMethodDisplayName(key.method) + " (" + GetGatewayDisplayName(key.gateway) + ")",
		})
	}
	r.mu.RUnlock()

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Method != pairs[j].Method {
			return pairs[i].Method < pairs[j].Method
		}
		return pairs[i].Gateway < pairs[j].Gateway
	})
	return pairs
}

// GetGatewayDisplayName returns the display name for a gateway
func GetGatewayDisplayName(gateway string) string {
	names := map[string]string{
		models.GatewayStripe:      "Stripe",
		models.GatewayBraintree:   "Braintree",
		models.GatewayQuickpay:    "Quickpay",
		models.GatewayPaysafecard: "Paysafecard",
		models.GatewayKlarna:      "Klarna",
		models.GatewayPayPal:      "PayPal",
		models.GatewayAmazon:      "Amazon Pay",
		AnyGateway:                "any gateway",
	}

	if name, ok := names[gateway]; ok {
		return name
	}
	return gateway
}

// GetPaymentMethodDisplayName returns the display name for a payment method
func GetPaymentMethodDisplayName(method string) string {
	names := map[string]string{
		models.MethodCard:        "Credit/Debit Card",
		models.MethodIDeal:       "iDEAL",
		models.MethodBancontact:  "Bancontact",
		models.MethodKlarna:      "Klarna",
		models.MethodPaysafecard: "Paysafecard",
		models.MethodPayPal:      "PayPal",
		models.MethodGoogle:      "Google Pay",
		models.MethodApple:       "Apple Pay",
		models.MethodAmazon:      "Amazon Pay",
	}

	if name, ok := names[method]; ok {
		return name
	}
	return method
}
