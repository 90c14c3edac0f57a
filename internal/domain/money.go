package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMoneyInvalid возвращается, если строку не удалось разобрать как денежную сумму.
	ErrMoneyInvalid = errors.New("invalid money amount")
	// ErrMoneyNegative возвращается для отрицательных денежных сумм на входе.
	ErrMoneyNegative = errors.New("money amount must be non-negative")
	// ErrMoneyPrecision возвращается, если сумма содержит доли меньше минимальной единицы.
	ErrMoneyPrecision = errors.New("money amount must have at most two decimal places")
)

var centsPerUnit = decimal.NewFromInt(100)

// MoneyString форматирует сумму в минимальных единицах как десятичную строку
// с двумя знаками после запятой ("3000" -> "30.00"). Используется на границе
// сериализации, чтобы валюта не протекала наружу как float.
func MoneyString(minor int64) string {
	return decimal.NewFromInt(minor).Div(centsPerUnit).StringFixed(2)
}

// ParseMoney разбирает десятичную строку в минимальные единицы.
// Допускаются максимум два знака после запятой; отрицательные суммы отклоняются.
func ParseMoney(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrMoneyInvalid
	}
	if d.IsNegative() {
		return 0, ErrMoneyNegative
	}
	minor := d.Mul(centsPerUnit)
	if !minor.IsInteger() {
		return 0, ErrMoneyPrecision
	}
	return minor.IntPart(), nil
}

// DiscountedPriceMinor вычисляет цену со скидкой от базовой цены:
// original * (1 - percentage/100), округление до минимальной единицы
// выполняется один раз — на итоговом значении.
func DiscountedPriceMinor(originalMinor int64, percentage int32) int64 {
	price := decimal.NewFromInt(originalMinor).
		Mul(decimal.NewFromInt(int64(100-percentage))).
		DivRound(centsPerUnit, 0)
	return price.IntPart()
}
