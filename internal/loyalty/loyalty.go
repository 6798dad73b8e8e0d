// Package loyalty реализует расчёты программы лояльности: начисление баллов,
// определение уровня и скидки уровня.
package loyalty

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tatlight/backend/internal/model"
)

// ErrNegativeAmount возвращается при попытке начислить баллы за отрицательную сумму.
var ErrNegativeAmount = errors.New("purchase amount must not be negative")

// TierLevel описывает один уровень программы лояльности: минимальное число
// баллов для уровня и процент скидки.
type TierLevel struct {
	Tier      model.LoyaltyTier
	MinPoints int64
	Discount  int
}

// Config содержит настройки программы лояльности. Передаётся в Ledger при
// создании, что позволяет тестировать разные схемы уровней без перезапуска.
type Config struct {
	// PointsPerUnit — сколько баллов начисляется за одну денежную единицу.
	PointsPerUnit decimal.Decimal
	// Tiers — таблица уровней. Порядок не важен: Ledger сам упорядочивает
	// уровни по убыванию порога.
	Tiers []TierLevel
}

// DefaultTiers возвращает таблицу уровней по умолчанию.
func DefaultTiers() []TierLevel {
	return []TierLevel{
		{Tier: model.TierBronze, MinPoints: 0, Discount: 0},
		{Tier: model.TierSilver, MinPoints: 500, Discount: 5},
		{Tier: model.TierGold, MinPoints: 1000, Discount: 10},
		{Tier: model.TierPlatinum, MinPoints: 2500, Discount: 15},
	}
}

// Ledger выполняет чистые расчёты программы лояльности. Ledger не хранит
// состояния и не помнит обработанные заказы: защита от повторного начисления
// обеспечивается идемпотентностью расчёта заказа.
type Ledger struct {
	pointsPerUnit decimal.Decimal
	// Уровни упорядочены по убыванию порога: первый подошедший выигрывает,
	// что защищает от пересекающихся диапазонов.
	tiers []TierLevel
}

// NewLedger создаёт Ledger с указанной конфигурацией. Пустая таблица уровней
// заменяется таблицей по умолчанию.
func NewLedger(cfg Config) *Ledger {
	tiers := cfg.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}

	sorted := make([]TierLevel, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinPoints > sorted[j].MinPoints
	})

	rate := cfg.PointsPerUnit
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	return &Ledger{
		pointsPerUnit: rate,
		tiers:         sorted,
	}
}

// PointsFor возвращает число баллов за покупку на указанную сумму:
// floor(amount * pointsPerUnit). Отрицательная сумма — нарушение контракта.
func (l *Ledger) PointsFor(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	return amount.Mul(l.pointsPerUnit).Floor().IntPart(), nil
}

// TierFor возвращает уровень для указанного числа баллов: самый высокий
// уровень, порог которого не превышает баланс, либо BRONZE.
func (l *Ledger) TierFor(points int64) model.LoyaltyTier {
	for _, t := range l.tiers {
		if points >= t.MinPoints {
			return t.Tier
		}
	}
	return model.TierBronze
}

// DiscountFor возвращает процент скидки для указанного уровня.
func (l *Ledger) DiscountFor(tier model.LoyaltyTier) int {
	for _, t := range l.tiers {
		if t.Tier == tier {
			return t.Discount
		}
	}
	return 0
}
