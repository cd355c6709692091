package services

import (
	"checkout-service/internal/clients"
	"checkout-service/internal/gateway"
)

// ClientBackend scopes the shared store and vault clients to a shopper's
// cart session.
type ClientBackend struct {
	cart  *clients.CartClient
	vault *clients.VaultClient
}

var _ SessionBackend = (*ClientBackend)(nil)

// NewClientBackend creates a backend over already configured clients.
func NewClientBackend(cart *clients.CartClient, vault *clients.VaultClient) *ClientBackend {
	return &ClientBackend{cart: cart, vault: vault}
}

func (b *ClientBackend) Store(cartSession string) Store {
	return b.cart.ForSession(cartSession)
}

func (b *ClientBackend) Vault(cartSession string) gateway.Vault {
	return b.vault.ForSession(cartSession)
}
