package domain

import "time"

// Discount описывает скидку на товар. Активная скидка пересчитывает
// текущую цену от базовой; сама базовая цена никогда не меняется.
type Discount struct {
	// Percentage — размер скидки в процентах, 0..100.
	Percentage int32
	// StartDate и EndDate ограничивают период действия; nil означает "не задано".
	StartDate *time.Time
	EndDate   *time.Time
	// IsActive — признак того, что скидка применяется к цене прямо сейчас.
	IsActive bool
}

// Validate проверяет корректность параметров скидки.
func (d *Discount) Validate() []error {
	var errs []error

	if d.Percentage < 0 || d.Percentage > 100 {
		errs = append(errs, ErrDiscountPercentInvalid)
	}
	if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
		errs = append(errs, ErrDiscountPeriodInvalid)
	}

	return errs
}

// ProductImage — ссылка на изображение товара во внешнем хранилище.
type ProductImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Product агрегирует состояние товара каталога.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Brand       string
	Images      []ProductImage
	// PriceMinor — текущая продажная цена в минимальных денежных единицах.
	PriceMinor int64
	// OriginalPriceMinor — базовая цена до скидки; от неё считается PriceMinor.
	OriginalPriceMinor int64
	// Stock — количество доступных к продаже единиц; инвариант: stock >= 0.
	Stock     int32
	Discount  *Discount
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) Validate() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Description == "" {
		errs = append(errs, ErrProductDescriptionRequired)
	}
	if p.Category == "" {
		errs = append(errs, ErrProductCategoryRequired)
	}
	if p.PriceMinor < 0 || p.OriginalPriceMinor < 0 {
		errs = append(errs, ErrProductPriceNegative)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockNegative)
	}
	if p.Discount != nil {
		errs = append(errs, p.Discount.Validate()...)
	}

	return errs
}
