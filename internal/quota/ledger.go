package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/pixelforge/backend/internal/database"
	"github.com/pixelforge/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStoreUnavailable wraps backing store failures
	ErrStoreUnavailable = errors.New("quota store unavailable")
	// ErrInvalidPlan is returned for plan kinds outside the closed enum
	ErrInvalidPlan = errors.New("invalid plan kind")
	// ErrInvalidVolume is returned for negative credit or non-positive debit amounts
	ErrInvalidVolume = errors.New("invalid volume")
	// ErrNotFound is returned when no quota record exists for the account and plan
	ErrNotFound = errors.New("quota record not found")
)

// Ledger owns the per-account quota records. All mutations are single
// SQL statements so concurrent credits and debits cannot lose updates.
type Ledger struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewLedger(db *gorm.DB, rdb *redis.Client) *Ledger {
	return &Ledger{db: db, redis: rdb}
}

// Credit adds volume to the (account, plan kind) record, creating it on
// first credit. Implemented as an atomic upsert: the additive expression
// runs inside the database, so two concurrent credits both land.
func (l *Ledger) Credit(accountID uint, planKind models.PlanKind, addVolume int64) error {
	if !planKind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, planKind)
	}
	if addVolume < 0 {
		return fmt.Errorf("%w: credit must be non-negative, got %d", ErrInvalidVolume, addVolume)
	}

	now := time.Now().UTC()
	record := models.AccountQuota{
		AccountID:      accountID,
		PlanKind:       planKind,
		CreditedVolume: addVolume,
		PeriodStart:    now,
	}

	err := l.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "plan_kind"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"credited_volume": gorm.Expr("account_quotas.credited_volume + ?", addVolume),
			"period_start":    now,
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	l.invalidate(accountID, planKind)
	return nil
}

// TryDebit atomically consumes volume if enough credit remains. The
// check and increment happen in one conditional UPDATE; the row count
// decides the outcome. Returns false without mutation when the account
// would overdraw.
func (l *Ledger) TryDebit(accountID uint, planKind models.PlanKind, amount int64) (bool, error) {
	if !planKind.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidPlan, planKind)
	}
	if amount <= 0 {
		return false, fmt.Errorf("%w: debit must be positive, got %d", ErrInvalidVolume, amount)
	}

	col := consumedColumn(planKind)
	result := l.db.Model(&models.AccountQuota{}).
		Where("account_id = ? AND plan_kind = ? AND "+col+" + ? <= credited_volume", accountID, planKind, amount).
		Update(col, gorm.Expr(col+" + ?", amount))
	if result.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Error)
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	l.invalidate(accountID, planKind)
	return true, nil
}

// Get returns the quota record for the account and plan kind, reading
// through the Redis cache when one is configured.
func (l *Ledger) Get(accountID uint, planKind models.PlanKind) (*models.AccountQuota, error) {
	if !planKind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, planKind)
	}

	cacheKey := database.QuotaCacheKey(accountID, string(planKind))
	if l.redis != nil {
		var cached models.AccountQuota
		if err := database.CacheGet(l.redis, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	var record models.AccountQuota
	err := l.db.Where("account_id = ? AND plan_kind = ?", accountID, planKind).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if l.redis != nil {
		database.CacheSet(l.redis, cacheKey, &record, database.CacheTTLQuota)
	}

	return &record, nil
}

func (l *Ledger) invalidate(accountID uint, planKind models.PlanKind) {
	if l.redis == nil {
		return
	}
	database.CacheDelete(l.redis, database.QuotaCacheKey(accountID, string(planKind)))
}

func consumedColumn(planKind models.PlanKind) string {
	if planKind == models.PlanKindCreative {
		return "creative_consumed"
	}
	return "flows_consumed"
}
