package loyalty

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tatlight/backend/internal/model"
)

func defaultLedger() *Ledger {
	return NewLedger(Config{PointsPerUnit: decimal.NewFromInt(1)})
}

func TestPointsFor_FloorsAmount(t *testing.T) {
	l := defaultLedger()

	points, err := l.PointsFor(decimal.RequireFromString("149.99"))
	if err != nil {
		t.Fatalf("PointsFor error: %v", err)
	}
	if points != 149 {
		t.Fatalf("points = %d, want 149", points)
	}
}

func TestPointsFor_CustomRate(t *testing.T) {
	l := NewLedger(Config{PointsPerUnit: decimal.RequireFromString("0.5")})

	points, err := l.PointsFor(decimal.RequireFromString("99.99"))
	if err != nil {
		t.Fatalf("PointsFor error: %v", err)
	}
	if points != 49 {
		t.Fatalf("points = %d, want 49", points)
	}
}

func TestPointsFor_NegativeAmount(t *testing.T) {
	l := defaultLedger()

	_, err := l.PointsFor(decimal.RequireFromString("-1"))
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestTierFor_Thresholds(t *testing.T) {
	l := defaultLedger()

	tests := []struct {
		points int64
		want   model.LoyaltyTier
	}{
		{0, model.TierBronze},
		{499, model.TierBronze},
		{500, model.TierSilver},
		{999, model.TierSilver},
		{1000, model.TierGold},
		{2499, model.TierGold},
		{2500, model.TierPlatinum},
		{100000, model.TierPlatinum},
	}

	for _, tt := range tests {
		if got := l.TierFor(tt.points); got != tt.want {
			t.Fatalf("TierFor(%d) = %s, want %s", tt.points, got, tt.want)
		}
	}
}

func TestTierFor_Monotonic(t *testing.T) {
	l := defaultLedger()

	prev := model.TierRank(l.TierFor(0))
	for p := int64(1); p <= 3000; p++ {
		cur := model.TierRank(l.TierFor(p))
		if cur < prev {
			t.Fatalf("tier rank decreased at %d points: %d -> %d", p, prev, cur)
		}
		prev = cur
	}
}

func TestTierFor_UnorderedConfig(t *testing.T) {
	l := NewLedger(Config{
		PointsPerUnit: decimal.NewFromInt(1),
		Tiers: []TierLevel{
			{Tier: model.TierGold, MinPoints: 1000, Discount: 10},
			{Tier: model.TierBronze, MinPoints: 0, Discount: 0},
			{Tier: model.TierPlatinum, MinPoints: 2500, Discount: 15},
			{Tier: model.TierSilver, MinPoints: 500, Discount: 5},
		},
	})

	if got := l.TierFor(1200); got != model.TierGold {
		t.Fatalf("TierFor(1200) = %s, want GOLD", got)
	}
	if got := l.TierFor(2500); got != model.TierPlatinum {
		t.Fatalf("TierFor(2500) = %s, want PLATINUM", got)
	}
}

func TestDiscountFor(t *testing.T) {
	l := defaultLedger()

	if got := l.DiscountFor(model.TierGold); got != 10 {
		t.Fatalf("DiscountFor(GOLD) = %d, want 10", got)
	}
	if got := l.DiscountFor(model.TierBronze); got != 0 {
		t.Fatalf("DiscountFor(BRONZE) = %d, want 0", got)
	}
	if got := l.DiscountFor(model.LoyaltyTier("UNKNOWN")); got != 0 {
		t.Fatalf("DiscountFor(UNKNOWN) = %d, want 0", got)
	}
}
