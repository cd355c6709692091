package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is a payment record previously recorded by the store. It is the
// input of out-of-band authentication.
type Payment struct {
	ID            string          `json:"id"`
	Method        string          `json:"method"`
	Gateway       string          `json:"gateway"`
	Status        string          `json:"status,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Card          *Card           `json:"card,omitempty"`
	OrderID       string          `json:"order_id,omitempty"`
}

// RedirectStatus is the state of a redirect ledger row.
type RedirectStatus string

const (
	// RedirectPending marks a return that is being handled.
	RedirectPending   RedirectStatus = "pending"
	RedirectSucceeded RedirectStatus = "succeeded"
)

// JSONB custom type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// RedirectRecord is one row of the redirect ledger. Signature identifies the
// return URL a shopper landed on together with the cart and intent it
// resumes, so a reload cannot resume the same redirect twice. Rows are
// unique per checkout session.
type RedirectRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_checkout_redirects_session_signature,priority:1" json:"sessionId"`
	Signature string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_checkout_redirects_session_signature,priority:2" json:"signature"`
	Gateway   string         `gorm:"type:varchar(50);not null" json:"gateway"`
	Method    string         `gorm:"type:varchar(50)" json:"method,omitempty"`
	Status    RedirectStatus `gorm:"type:varchar(20);not null" json:"status"`
	Query     JSONB          `gorm:"type:jsonb" json:"query,omitempty"`
	CreatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (RedirectRecord) TableName() string {
	return "checkout_redirects"
}
