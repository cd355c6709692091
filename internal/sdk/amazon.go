package sdk

// AmazonPay is amazon.Pay from the Amazon Pay checkout script.
type AmazonPay interface {
	RenderButton(selector string, opts *AmazonButtonOptions) error
}

// AmazonCheckoutSessionConfig is the signed checkout session payload.
type AmazonCheckoutSessionConfig struct {
	PayloadJSON string `json:"payloadJSON"`
	Signature   string `json:"signature"`
}

// AmazonButtonOptions configures the Amazon Pay button.
type AmazonButtonOptions struct {
	LedgerCurrency              string                      `json:"ledgerCurrency"`
	CheckoutLanguage            string                      `json:"checkoutLanguage"`
	ProductType                 string                      `json:"productType"`
	ButtonColor                 string                      `json:"buttonColor"`
	Placement                   string                      `json:"placement"`
	MerchantID                  string                      `json:"merchantId"`
	PublicKeyID                 string                      `json:"publicKeyId"`
	CreateCheckoutSessionConfig AmazonCheckoutSessionConfig `json:"createCheckoutSessionConfig"`
}
