package scripts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/host"
	"checkout-service/internal/sdk"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

// countingPage installs a global for every injected tag and counts injections.
type countingPage struct {
	host.Page
	mu       sync.Mutex
	globals  map[string]any
	injected map[string]int
	order    []string
	install  bool
	calls    atomic.Int32
}

func newCountingPage(install bool) *countingPage {
	return &countingPage{
		globals:  make(map[string]any),
		injected: make(map[string]int),
		install:  install,
	}
}

func (p *countingPage) InjectScript(_ context.Context, tag *host.ScriptTag) error {
	p.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.injected[tag.ID]++
	p.order = append(p.order, tag.ID)
	if p.install {
		p.globals[tag.Global] = tag.Src
	}
	return nil
}

func (p *countingPage) Global(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.globals[name]
	return v, ok
}

func TestLoader_DeduplicatesConcurrentLoads(t *testing.T) {
	page := newCountingPage(true)
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, loader.Load(context.Background(), ID(StripeJS)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), page.calls.Load())
	assert.True(t, loader.Loaded(StripeJS))

	require.NoError(t, loader.Load(context.Background(), ID(StripeJS)))
	assert.Equal(t, int32(1), page.calls.Load())
}

func TestLoader_SkipsInjectionWhenGlobalPresent(t *testing.T) {
	page := newCountingPage(false)
	page.globals[GlobalGoogle] = "preloaded"
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	require.NoError(t, loader.Load(context.Background(), ID(GooglePay)))
	assert.Equal(t, int32(0), page.calls.Load())
}

func TestLoader_MissingGlobalFails(t *testing.T) {
	page := newCountingPage(false)
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	err := loader.Load(context.Background(), ID(BraintreeWeb))

	var notLoaded *LibraryNotLoadedError
	require.True(t, errors.As(err, &notLoaded))
	assert.Equal(t, "Braintree was not loaded", err.Error())
	assert.False(t, loader.Loaded(BraintreeWeb))
}

func TestLoader_LoadsInDeclaredOrder(t *testing.T) {
	page := newCountingPage(true)
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	require.NoError(t, loader.Load(context.Background(),
		ID(BraintreePayPalSDK),
		ID(BraintreeWeb),
		ID(BraintreeWebPayPalCheckout),
	))

	assert.Equal(t, []string{BraintreePayPalSDK, BraintreeWeb, BraintreeWebPayPalCheckout}, page.order)
}

func TestLoader_ComponentRequiresBraintree(t *testing.T) {
	page := newCountingPage(true)
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	err := loader.Load(context.Background(), ID(BraintreeGooglePayment), ID(BraintreeWeb))

	var notLoaded *LibraryNotLoadedError
	require.True(t, errors.As(err, &notLoaded))
	assert.Equal(t, "Braintree was not loaded", err.Error())
	assert.Empty(t, page.order)
}

func TestLoader_UnknownIDSkipped(t *testing.T) {
	page := newCountingPage(true)
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	require.NoError(t, loader.Load(context.Background(), ID("not-a-script")))
	assert.Equal(t, int32(0), page.calls.Load())
}

func TestLoader_SettleDelayHonoursContext(t *testing.T) {
	page := newCountingPage(true)
	loader := NewLoader(page, testLogger(), WithSettleDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := loader.Load(ctx, ID(StripeJS))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoader_PayPalSource(t *testing.T) {
	page, err := host.NewSessionPage("https://shop.example/checkout",
		host.WithProvider(GlobalPayPal, func(host.Page) any { return "paypal" }),
	)
	require.NoError(t, err)
	loader := NewLoader(page, testLogger(), WithSettleDelay(0))

	require.NoError(t, loader.Load(context.Background(), Script{
		ID:     PayPalSDK,
		Params: map[string]string{"client_id": "cid", "merchant_id": "mid"},
	}))

	effects := page.Effects()
	require.Len(t, effects, 1)
	src := effects[0].Detail["src"].(string)
	assert.Contains(t, src, "client-id=cid")
	assert.Contains(t, src, "merchant-id=mid")
	assert.Contains(t, src, "intent=authorize")
	assert.Contains(t, src, "commit=false")
	assert.Equal(t, map[string]string{"data-partner-attribution-id": "SwellCommerce_SP"}, effects[0].Detail["attrs"])
}

func TestLibraries_TypedLookup(t *testing.T) {
	var factory sdk.StripeFactory = func(string) (sdk.Stripe, error) { return nil, nil }
	page, err := host.NewSessionPage("https://shop.example/checkout",
		host.WithGlobal(GlobalStripe, factory),
		host.WithGlobal(GlobalPayPal, "not a paypal handle"),
	)
	require.NoError(t, err)
	libs := NewLibraries(page)

	got, err := libs.Stripe()
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = libs.PayPal()
	assert.EqualError(t, err, "PayPal was not loaded")

	_, err = libs.Amazon()
	assert.EqualError(t, err, "Amazon was not loaded")
}
