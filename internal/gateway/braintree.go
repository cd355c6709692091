package gateway

import (
	"context"
	"fmt"

	"checkout-service/internal/fieldmap"
	"checkout-service/internal/host"
	"checkout-service/internal/models"
	"checkout-service/internal/scripts"
	"checkout-service/internal/sdk"
)

const (
	paypalButtonID          = "paypal-button"
	braintreeGooglePayVer   = 2
	applePaySessionVersion  = 3
	braintreeApplePayButton = "apple-pay-button"
)

// braintreeClient authorizes the page with the vault and creates a Braintree
// client. The vault returns the client token as a JSON string.
func (b *Base) braintreeClient(ctx context.Context) (sdk.BraintreeClient, error) {
	var authorization string
	ok, err := b.authorizeGateway(ctx, nil, &authorization)
	if err != nil {
		return nil, err
	}
	if !ok || authorization == "" {
		return nil, NewGatewayError(b.gateway, codeInvalidConfig, "Braintree authorization is not defined")
	}

	braintree, err := b.deps.Libraries.Braintree()
	if err != nil {
		return nil, err
	}
	return braintree.CreateClient(ctx, authorization)
}

// BraintreePayPal vaults a PayPal account through Braintree checkout.
type BraintreePayPal struct {
	Base
}

func NewBraintreePayPal(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	return &BraintreePayPal{
		Base: newBase(models.MethodPayPal, models.GatewayBraintree, deps, params, methods[models.MethodPayPal]),
	}, nil
}

func (b *BraintreePayPal) Scripts() []scripts.Script {
	return []scripts.Script{
		{ID: scripts.BraintreePayPalSDK, Params: map[string]string{
			"client_id":   b.settings.ClientID,
			"merchant_id": b.settings.MerchantID,
		}},
		scripts.ID(scripts.BraintreeWeb),
		scripts.ID(scripts.BraintreeWebPayPalCheckout),
	}
}

func (b *BraintreePayPal) CreateElements(ctx context.Context) error {
	cart, err := b.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := b.braintreeClient(ctx)
	if err != nil {
		return err
	}
	checkout, err := b.deps.Libraries.BraintreePayPalCheckout()
	if err != nil {
		return err
	}
	instance, err := checkout.Create(ctx, client)
	if err != nil {
		return err
	}
	paypal, err := b.deps.Libraries.PayPal()
	if err != nil {
		return err
	}

	style := b.params.Style
	if style == nil {
		style = map[string]any{}
	}
	button, err := paypal.Buttons(&sdk.PayPalButtonsOptions{
		Style: style,
		CreateBillingAgreement: func(ctx context.Context) (string, error) {
			return instance.CreatePayment(ctx, &sdk.PayPalCheckoutPayment{
				Flow:     "vault",
				Currency: cart.Currency,
				Amount:   fieldmap.FormatAmount(cart.CaptureTotal),
			})
		},
		OnApprove: func(ctx context.Context, data *sdk.PayPalApproveData, _ sdk.PayPalActions) error {
			nonce, err := instance.TokenizePayment(ctx, data)
			if err != nil {
				return err
			}
			if err := b.updateBilling(ctx, &models.Billing{
				Method: models.MethodPayPal,
				PayPal: &models.PayPalBilling{Nonce: nonce.Nonce},
			}); err != nil {
				return err
			}
			b.OnSuccess(data)
			return nil
		},
		OnCancel: b.OnCancel,
		OnError:  b.OnError,
	})
	if err != nil {
		return err
	}
	return button.Render("#" + b.params.ElementIDOr(paypalButtonID))
}

// BraintreeGoogle pays with Google Pay, tokenized by Braintree.
type BraintreeGoogle struct {
	googleBase
}

func NewBraintreeGoogle(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	if methods[models.MethodCard] == nil {
		return nil, &PaymentMethodDisabledError{Method: "Credit cards"}
	}
	return &BraintreeGoogle{
		googleBase: googleBase{
			Base: newBase(models.MethodGoogle, models.GatewayBraintree, deps, params, methods[models.MethodGoogle]),
		},
	}, nil
}

func (b *BraintreeGoogle) Scripts() []scripts.Script {
	return []scripts.Script{
		scripts.ID(scripts.GooglePay),
		scripts.ID(scripts.BraintreeWeb),
		scripts.ID(scripts.BraintreeGooglePayment),
	}
}

func (b *BraintreeGoogle) CreateElements(ctx context.Context) error {
	return b.render(ctx, b.pay)
}

func (b *BraintreeGoogle) pay(ctx context.Context) error {
	cart, err := b.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := b.braintreeClient(ctx)
	if err != nil {
		return err
	}
	googlePayment, err := b.deps.Libraries.BraintreeGooglePayment()
	if err != nil {
		return err
	}
	instance, err := googlePayment.Create(ctx, &sdk.GooglePaymentCreateOptions{
		Client:           client,
		GoogleMerchantID: b.settings.MerchantID,
		GooglePayVersion: braintreeGooglePayVer,
	})
	if err != nil {
		return err
	}
	google, err := b.client()
	if err != nil {
		return err
	}

	data, err := google.LoadPaymentData(ctx, instance.CreatePaymentDataRequest(b.paymentDataRequest(cart)))
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	nonce, err := instance.ParseResponse(ctx, data)
	if err != nil {
		return err
	}

	update := b.cartUpdate(cart, data, &models.Billing{
		Method: models.MethodGoogle,
		Google: &models.WalletBilling{Nonce: nonce.Nonce, Gateway: models.GatewayBraintree},
	})
	if _, err := b.updateCart(ctx, update); err != nil {
		return err
	}
	b.OnSuccess(nil)
	return nil
}

// BraintreeApple pays with an Apple Pay session validated and tokenized by
// Braintree.
type BraintreeApple struct {
	Base
}

func NewBraintreeApple(deps Deps, params *Params, methods models.PaymentMethods) (Method, error) {
	if methods[models.MethodCard] == nil {
		return nil, &PaymentMethodDisabledError{Method: "Credit cards"}
	}
	return &BraintreeApple{
		Base: newBase(models.MethodApple, models.GatewayBraintree, deps, params, methods[models.MethodApple]),
	}, nil
}

func (b *BraintreeApple) Scripts() []scripts.Script {
	return []scripts.Script{
		scripts.ID(scripts.BraintreeWeb),
		scripts.ID(scripts.BraintreeApplePayment),
	}
}

func (b *BraintreeApple) CreateElements(ctx context.Context) error {
	applePay, err := b.deps.Libraries.ApplePay()
	if err != nil {
		return err
	}
	if !applePay.CanMakePayments() {
		return NewGatewayError(b.gateway, codeDeviceUnsupported, "This device is not capable of making Apple Pay payments")
	}

	cart, err := b.getCart(ctx)
	if err != nil {
		return err
	}
	client, err := b.braintreeClient(ctx)
	if err != nil {
		return err
	}
	lib, err := b.deps.Libraries.BraintreeApplePay()
	if err != nil {
		return err
	}
	instance, err := lib.Create(ctx, client)
	if err != nil {
		return err
	}
	request := instance.CreatePaymentRequest(b.paymentRequest(cart))

	container, err := b.container(b.params.ElementIDOr(applePayButtonID))
	if err != nil {
		return err
	}
	if class := b.params.BaseClass(); class != "" {
		container.AddClass(class)
	}
	container.Append(&host.Node{
		Kind: braintreeApplePayButton,
		Attrs: map[string]string{
			"type":   b.params.StyleString("type", "plain"),
			"theme":  b.params.StyleString("theme", "black"),
			"height": b.params.StyleString("height", "40px"),
		},
		OnClick: func(ctx context.Context) {
			b.beginSession(ctx, applePay, cart, instance, request)
		},
	})
	return nil
}

func (b *BraintreeApple) paymentRequest(cart *models.Cart) *sdk.ApplePayPaymentRequest {
	var shippingFields []string
	if b.params.Require.Name {
		shippingFields = append(shippingFields, "name")
	}
	if b.params.Require.Email {
		shippingFields = append(shippingFields, "email")
	}
	if b.params.Require.Phone {
		shippingFields = append(shippingFields, "phone")
	}
	if b.params.Require.Shipping {
		shippingFields = append(shippingFields, "postalAddress")
	}

	return &sdk.ApplePayPaymentRequest{
		Total: sdk.ApplePayLineItem{
			Label:  cart.StoreName(),
			Type:   "pending",
			Amount: fieldmap.FormatAmount(cart.CaptureTotal),
		},
		CurrencyCode:                  cart.Currency,
		MerchantCapabilities:          []string{"supports3DS", "supportsDebit", "supportsCredit"},
		RequiredShippingContactFields: shippingFields,
		RequiredBillingContactFields:  []string{"postalAddress"},
	}
}

func (b *BraintreeApple) beginSession(ctx context.Context, applePay sdk.ApplePay, cart *models.Cart, instance sdk.ApplePayInstance, request *sdk.ApplePayPaymentRequest) {
	session, err := applePay.NewSession(applePaySessionVersion, request)
	if err != nil {
		b.OnError(err)
		return
	}

	session.OnValidateMerchant(func(ctx context.Context, validationURL string) {
		merchantSession, err := instance.PerformValidation(ctx, &sdk.ApplePayValidation{
			ValidationURL: validationURL,
			DisplayName:   request.Total.Label,
		})
		if err != nil {
			b.OnError(err)
			session.Abort()
			return
		}
		session.CompleteMerchantValidation(merchantSession)
	})

	session.OnPaymentAuthorized(func(ctx context.Context, payment *sdk.ApplePayPayment) {
		if err := b.paymentAuthorized(ctx, cart, instance, payment); err != nil {
			b.OnError(err)
			session.CompletePayment(sdk.ApplePayStatusFailure)
			return
		}
		b.OnSuccess(nil)
		session.CompletePayment(sdk.ApplePayStatusSuccess)
	})

	session.Begin(ctx)
}

func (b *BraintreeApple) paymentAuthorized(ctx context.Context, cart *models.Cart, instance sdk.ApplePayInstance, payment *sdk.ApplePayPayment) error {
	nonce, err := instance.Tokenize(ctx, payment.Token)
	if err != nil {
		return err
	}
	if nonce == nil || nonce.Nonce == "" {
		return fmt.Errorf("apple pay tokenization returned no nonce")
	}

	update := &models.CartUpdate{
		Billing: &models.Billing{
			Address: fieldmap.ApplePayContact(payment.BillingContact),
			Method:  models.MethodApple,
			Apple:   &models.WalletBilling{Nonce: nonce.Nonce, Gateway: models.GatewayBraintree},
		},
	}
	if needsAccount(cart) && payment.ShippingContact != nil {
		update.Account = &models.Account{
			Email:     payment.ShippingContact.EmailAddress,
			FirstName: payment.ShippingContact.GivenName,
			LastName:  payment.ShippingContact.FamilyName,
		}
	}
	if b.params.Require.Shipping {
		update.Shipping = &models.ShippingUpdate{Address: fieldmap.ApplePayContact(payment.ShippingContact)}
	}

	_, err = b.updateCart(ctx, update)
	return err
}
