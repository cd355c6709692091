package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"checkout-service/internal/models"
)

// DefaultClaimTTL is how long a pending claim blocks other deliveries of
// the same redirect. A claim left behind by a crashed handler can be taken
// over once it is older than this.
const DefaultClaimTTL = 2 * time.Minute

// RedirectLedger records redirect returns per checkout session, keyed by
// the signature of the return.
type RedirectLedger interface {
	// Claim reserves a redirect for handling. It reports false when the
	// session already handled the redirect or another delivery holds a
	// live claim on it.
	Claim(ctx context.Context, record *models.RedirectRecord) (bool, error)
	// Complete marks a claimed redirect as handled by method.
	Complete(ctx context.Context, sessionID, signature, method string) error
	// Release drops a pending claim so the redirect can be delivered again.
	Release(ctx context.Context, sessionID, signature string) error
	// ListBySession lists the redirects of a checkout session, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]models.RedirectRecord, error)
}

// RedirectRepository is the postgres-backed RedirectLedger
type RedirectRepository struct {
	db       *gorm.DB
	claimTTL time.Duration
}

var _ RedirectLedger = (*RedirectRepository)(nil)

// NewRedirectRepository creates a new redirect repository
func NewRedirectRepository(db *gorm.DB) *RedirectRepository {
	return &RedirectRepository{db: db, claimTTL: DefaultClaimTTL}
}

// Migrate creates or updates the ledger table
func (r *RedirectRepository) Migrate() error {
	return r.db.AutoMigrate(&models.RedirectRecord{})
}

// Claim inserts a pending row. A conflicting row only yields to the claim
// when it is a pending claim older than the claim TTL.
func (r *RedirectRepository) Claim(ctx context.Context, record *models.RedirectRecord) (bool, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Status = models.RedirectPending
	now := time.Now()
	record.CreatedAt = now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "signature"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"created_at": now, "query": record.Query}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{
					SQL:  "checkout_redirects.status = ? AND checkout_redirects.created_at < ?",
					Vars: []interface{}{models.RedirectPending, now.Add(-r.claimTTL)},
				},
			}},
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Complete marks a pending redirect as succeeded
func (r *RedirectRepository) Complete(ctx context.Context, sessionID, signature, method string) error {
	return r.db.WithContext(ctx).
		Model(&models.RedirectRecord{}).
		Where("session_id = ? AND signature = ?", sessionID, signature).
		Updates(map[string]interface{}{"status": models.RedirectSucceeded, "method": method}).Error
}

// Release deletes a pending claim
func (r *RedirectRepository) Release(ctx context.Context, sessionID, signature string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND signature = ? AND status = ?", sessionID, signature, models.RedirectPending).
		Delete(&models.RedirectRecord{}).Error
}

// ListBySession lists handled redirects for a checkout session, newest first
func (r *RedirectRepository) ListBySession(ctx context.Context, sessionID string) ([]models.RedirectRecord, error) {
	var records []models.RedirectRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// DeleteOlderThan prunes ledger rows created before cutoff
func (r *RedirectRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.RedirectRecord{})
	return result.RowsAffected, result.Error
}

// MemoryLedger is an in-process RedirectLedger used when no database is
// configured.
type MemoryLedger struct {
	mu       sync.RWMutex
	records  map[ledgerKey]models.RedirectRecord
	claimTTL time.Duration
	now      func() time.Time
}

type ledgerKey struct {
	sessionID string
	signature string
}

var _ RedirectLedger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records:  make(map[ledgerKey]models.RedirectRecord),
		claimTTL: DefaultClaimTTL,
		now:      time.Now,
	}
}

func (m *MemoryLedger) Claim(_ context.Context, record *models.RedirectRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := ledgerKey{sessionID: record.SessionID, signature: record.Signature}
	if existing, ok := m.records[key]; ok {
		if existing.Status != models.RedirectPending || now.Sub(existing.CreatedAt) < m.claimTTL {
			return false, nil
		}
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Status = models.RedirectPending
	record.CreatedAt = now
	m.records[key] = *record
	return true, nil
}

func (m *MemoryLedger) Complete(_ context.Context, sessionID, signature, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey{sessionID: sessionID, signature: signature}
	record, ok := m.records[key]
	if !ok {
		return nil
	}
	record.Status = models.RedirectSucceeded
	record.Method = method
	m.records[key] = record
	return nil
}

func (m *MemoryLedger) Release(_ context.Context, sessionID, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey{sessionID: sessionID, signature: signature}
	if record, ok := m.records[key]; ok && record.Status == models.RedirectPending {
		delete(m.records, key)
	}
	return nil
}

func (m *MemoryLedger) ListBySession(_ context.Context, sessionID string) ([]models.RedirectRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RedirectRecord
	for key, record := range m.records {
		if key.sessionID == sessionID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
