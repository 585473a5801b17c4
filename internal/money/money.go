// Package money содержит чистые денежные вычисления сервиса.
// Вся арифметика ведётся в целых минимальных единицах валюты (центах);
// дробные и отформатированные суммы существуют только для отображения.
package money

import "math"

// Line — входная позиция для расчёта итогов.
type Line struct {
	// UnitCents — цена за единицу, неотрицательное целое.
	UnitCents int64
	// Qty — количество единиц, положительное целое.
	Qty int32
}

// Totals — результат расчёта: subtotal + tax = total, всегда.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}

// ComputeTotals считает итоги заказа в центах.
//
// SubtotalCents = Σ UnitCents_i * Qty_i (целочисленно, без float).
// TaxCents = round(SubtotalCents * taxRate), округление half away from zero;
// subtotal неотрицателен, поэтому это эквивалент round-half-up: 0.5 цента
// уходит вверх. Правило зафиксировано тестами — от него зависит
// воспроизводимость итогов.
func ComputeTotals(lines []Line, taxRate float64) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitCents * int64(line.Qty)
	}

	tax := roundHalfAwayFromZero(float64(subtotal) * taxRate)

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
	}
}

func roundHalfAwayFromZero(x float64) int64 {
	if x >= 0 {
		return int64(math.Floor(x + 0.5))
	}
	return int64(math.Ceil(x - 0.5))
}
