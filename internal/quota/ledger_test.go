package quota

import (
	"sync"
	"testing"

	"github.com/pixelforge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Single connection keeps concurrent test goroutines on one SQLite
	// handle; statement atomicity is still what is under test.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.AccountQuota{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM account_quotas")
		sqlDB.Close()
	})

	return NewLedger(db, nil)
}

func TestLedger_CreditCreatesRecord(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.Credit(1, models.PlanKindFlow, 5))

	record, err := ledger.Get(1, models.PlanKindFlow)
	require.NoError(t, err)
	assert.Equal(t, int64(5), record.CreditedVolume)
	assert.Equal(t, int64(0), record.FlowsConsumed)
	assert.Equal(t, int64(0), record.CreativeConsumed)
	assert.False(t, record.PeriodStart.IsZero())
}

func TestLedger_CreditIsAdditive(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.Credit(1, models.PlanKindFlow, 5))
	require.NoError(t, ledger.Credit(1, models.PlanKindFlow, 3))

	record, err := ledger.Get(1, models.PlanKindFlow)
	require.NoError(t, err)
	assert.Equal(t, int64(8), record.CreditedVolume)
	assert.Equal(t, int64(0), record.FlowsConsumed)
}

func TestLedger_CreditKeepsPlansSeparate(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.Credit(1, models.PlanKindFlow, 5))
	require.NoError(t, ledger.Credit(1, models.PlanKindCreative, 7))

	flow, err := ledger.Get(1, models.PlanKindFlow)
	require.NoError(t, err)
	creative, err := ledger.Get(1, models.PlanKindCreative)
	require.NoError(t, err)

	assert.Equal(t, int64(5), flow.CreditedVolume)
	assert.Equal(t, int64(7), creative.CreditedVolume)
}

func TestLedger_CreditRejectsInvalidInput(t *testing.T) {
	ledger := newTestLedger(t)

	err := ledger.Credit(1, models.PlanKindFlow, -1)
	assert.ErrorIs(t, err, ErrInvalidVolume)

	err = ledger.Credit(1, "platinum", 5)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = ledger.Get(1, models.PlanKindFlow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_ConcurrentCreditsAllLand(t *testing.T) {
	ledger := newTestLedger(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Credit(1, models.PlanKindFlow, 1)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	record, err := ledger.Get(1, models.PlanKindFlow)
	require.NoError(t, err)
	assert.Equal(t, int64(n), record.CreditedVolume)
}

func TestLedger_TryDebit(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.Credit(1, models.PlanKindFlow, 3))

	for i := 0; i < 3; i++ {
		ok, err := ledger.TryDebit(1, models.PlanKindFlow, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// Credit exhausted: refuse without mutation
	ok, err := ledger.TryDebit(1, models.PlanKindFlow, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	record, err := ledger.Get(1, models.PlanKindFlow)
	require.NoError(t, err)
	assert.Equal(t, int64(3), record.FlowsConsumed)
}

func TestLedger_TryDebitUsesPlanCounter(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.Credit(1, models.PlanKindCreative, 2))

	ok, err := ledger.TryDebit(1, models.PlanKindCreative, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	record, err := ledger.Get(1, models.PlanKindCreative)
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.CreativeConsumed)
	assert.Equal(t, int64(0), record.FlowsConsumed)
}

func TestLedger_TryDebitRejectsInvalidInput(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.TryDebit(1, models.PlanKindFlow, 0)
	assert.ErrorIs(t, err, ErrInvalidVolume)

	_, err = ledger.TryDebit(1, "platinum", 1)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestLedger_TryDebitMissingRecord(t *testing.T) {
	ledger := newTestLedger(t)

	ok, err := ledger.TryDebit(42, models.PlanKindFlow, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ledger := newTestLedger(t)

	const credited = 10
	const attempts = 40
	require.NoError(t, ledger.Credit(1, models.PlanKindFlow, credited))

	var wg sync.WaitGroup
	granted := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.TryDebit(1, models.PlanKindFlow, 1)
			if err == nil && ok {
				granted <- true
			}
		}()
	}
	wg.Wait()
	close(granted)

	grantedCount := 0
	for range granted {
		grantedCount++
	}
	assert.Equal(t, credited, grantedCount)

	record, err := ledger.Get(1, models.PlanKindFlow)
	require.NoError(t, err)
	assert.Equal(t, int64(credited), record.FlowsConsumed)
	assert.LessOrEqual(t, record.FlowsConsumed, record.CreditedVolume)
}
