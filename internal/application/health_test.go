package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/batch-service/internal/domain"
)

type healthFixture struct {
	health        *HealthEvaluator
	batches       *fakeBatchRepo
	products      *fakeProductRepo
	notifications *fakeNotificationRepo
	outbox        *fakeOutbox
}

func newHealthFixture(now time.Time, products ...*domain.Product) *healthFixture {
	batchRepo := newFakeBatchRepo()
	productRepo := newFakeProductRepo(products...)
	notificationRepo := &fakeNotificationRepo{}
	outbox := &fakeOutbox{}
	logger := newTestLogger()

	notifier := NewNotifier(notificationRepo, outbox, logger, nil)
	health := NewHealthEvaluator(batchRepo, productRepo, notifier, logger, nil)
	health.now = func() time.Time { return now }

	return &healthFixture{
		health:        health,
		batches:       batchRepo,
		products:      productRepo,
		notifications: notificationRepo,
		outbox:        outbox,
	}
}

func alertRules(outbox *fakeOutbox) []string {
	var rules []string
	for _, event := range outbox.byType("alert.raised") {
		rules = append(rules, event.(*domain.AlertRaisedEvent).Rule)
	}
	return rules
}

func TestHealthEvaluator_CriticalStock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	product := &domain.Product{ProductID: "prod-1", Name: "Rice", WeightPerUnit: 1, MinimumStock: 20, Category: domain.CategoryFood}
	fx := newHealthFixture(now, product)

	// 4 + 5 = 9 across shelves; 9 < 20/2 trips the alert.
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-1", domain.MustParseShelfAddress("A1-1"), 4, nil)))
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-1", domain.MustParseShelfAddress("B1-1"), 5, nil)))

	require.NoError(t, fx.health.Run(ctx, "prod-1"))

	assert.Equal(t, []string{RuleCriticalStock}, alertRules(fx.outbox))
	require.Len(t, fx.notifications.messages(), 1)
	assert.Contains(t, fx.notifications.messages()[0], "Rice")
	assert.Contains(t, fx.notifications.messages()[0], "9")
}

func TestHealthEvaluator_StockAtHalfMinimumIsQuiet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	product := &domain.Product{ProductID: "prod-1", Name: "Rice", WeightPerUnit: 1, MinimumStock: 20, Category: domain.CategoryFood}
	fx := newHealthFixture(now, product)

	// Exactly half the minimum does not trip the strict comparison.
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-1", domain.MustParseShelfAddress("A1-1"), 10, nil)))

	require.NoError(t, fx.health.Run(ctx, "prod-1"))
	assert.Empty(t, alertRules(fx.outbox))
}

func TestHealthEvaluator_ExpiryBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		daysOut  int
		wantRule string
	}{
		{name: "expired yesterday", daysOut: -1, wantRule: RuleExpired},
		{name: "expires today", daysOut: 0, wantRule: RuleExpired},
		{name: "expires tomorrow", daysOut: 1, wantRule: RuleCriticalExpiry},
		{name: "expires in two days", daysOut: 2, wantRule: RuleCriticalExpiry},
		{name: "three days out is silent", daysOut: 3},
		{name: "five days out is silent", daysOut: 5},
		{name: "six days out is silent", daysOut: 6},
		{name: "exactly seven days warns", daysOut: 7, wantRule: RuleExpiryWarning},
		{name: "eight days out is silent", daysOut: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			product := &domain.Product{ProductID: "prod-1", Name: "Milk", WeightPerUnit: 1, Category: domain.CategoryBeverage}
			fx := newHealthFixture(now, product)

			expiry := now.AddDate(0, 0, tt.daysOut)
			require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-1", domain.MustParseShelfAddress("A1-1"), 5, &expiry)))

			require.NoError(t, fx.health.Run(ctx, "prod-1"))

			rules := alertRules(fx.outbox)
			if tt.wantRule == "" {
				assert.Empty(t, rules)
			} else {
				assert.Equal(t, []string{tt.wantRule}, rules)
			}
		})
	}
}

func TestHealthEvaluator_NonPerishableRaisesNoExpiryAlerts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	product := &domain.Product{ProductID: "prod-1", Name: "Nails", WeightPerUnit: 1, Category: domain.CategoryHousehold}
	fx := newHealthFixture(now, product)

	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-1", domain.MustParseShelfAddress("A1-1"), 50, nil)))

	require.NoError(t, fx.health.Run(ctx, "prod-1"))
	assert.Empty(t, alertRules(fx.outbox))
}

func TestHealthEvaluator_RunAllSweepsAllProducts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	healthy := &domain.Product{ProductID: "prod-ok", Name: "Soap", WeightPerUnit: 1, MinimumStock: 2, Category: domain.CategoryHousehold}
	starved := &domain.Product{ProductID: "prod-low", Name: "Tea", WeightPerUnit: 1, MinimumStock: 10, Category: domain.CategoryBeverage}
	fx := newHealthFixture(now, healthy, starved)

	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-ok", domain.MustParseShelfAddress("A1-1"), 20, nil)))
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-low", domain.MustParseShelfAddress("A1-2"), 1, nil)))

	require.NoError(t, fx.health.RunAll(ctx))
	assert.Equal(t, []string{RuleCriticalStock}, alertRules(fx.outbox))
}

func TestScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	product := &domain.Product{ProductID: "prod-1", Name: "Tea", WeightPerUnit: 1, MinimumStock: 10, Category: domain.CategoryBeverage}
	fx := newHealthFixture(now, product)
	require.NoError(t, fx.batches.Insert(ctx, domain.NewBatch("prod-1", domain.MustParseShelfAddress("A1-1"), 1, nil)))

	scheduler := NewScheduler(fx.health, 10*time.Millisecond, newTestLogger())
	scheduler.Start(ctx)

	assert.Eventually(t, func() bool {
		return len(alertRules(fx.outbox)) > 0
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()
}
