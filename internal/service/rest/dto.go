package rest

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

// Денежные суммы сериализуются десятичными строками ("30.00"):
// float в JSON недопустим для денег.

type discountPayload struct {
	Percentage int32      `json:"percentage"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	IsActive   bool       `json:"is_active"`
}

type productResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Category      string                `json:"category"`
	Brand         string                `json:"brand,omitempty"`
	Images        []domain.ProductImage `json:"images,omitempty"`
	Price         string                `json:"price"`
	OriginalPrice string                `json:"original_price"`
	Stock         int32                 `json:"stock"`
	Discount      *discountPayload      `json:"discount,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	resp := productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Brand:         p.Brand,
		Images:        p.Images,
		Price:         domain.MoneyString(p.PriceMinor),
		OriginalPrice: domain.MoneyString(p.OriginalPriceMinor),
		Stock:         p.Stock,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Discount != nil {
		resp.Discount = &discountPayload{
			Percentage: p.Discount.Percentage,
			StartDate:  p.Discount.StartDate,
			EndDate:    p.Discount.EndDate,
			IsActive:   p.Discount.IsActive,
		}
	}
	return resp
}

func toProductResponses(products []domain.Product) []productResponse {
	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	return result
}

type addProductRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Brand       string                `json:"brand"`
	Images      []domain.ProductImage `json:"images"`
	Price       string                `json:"price"`
	Stock       int32                 `json:"stock"`
}

type updateProductRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Category    *string               `json:"category"`
	Brand       *string               `json:"brand"`
	Images      []domain.ProductImage `json:"images"`
	Price       *string               `json:"price"`
}

type restockRequest struct {
	Delta int32 `json:"delta"`
}

type applyDiscountRequest struct {
	Percentage int32      `json:"percentage"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	IsActive   bool       `json:"is_active"`
}

func (r updateProductRequest) toInput() (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Brand:       r.Brand,
		Images:      r.Images,
	}
	if r.Price != nil {
		minor, err := domain.ParseMoney(*r.Price)
		if err != nil {
			return catalog.UpdateProductInput{}, err
		}
		input.PriceMinor = &minor
	}
	return input, nil
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

type userResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type shippingAddressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type paymentInfoPayload struct {
	Method        domain.PaymentMethod `json:"method"`
	Status        domain.PaymentStatus `json:"status,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

type placeOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type placeOrderRequest struct {
	Items           []placeOrderItemRequest `json:"items"`
	ShippingAddress shippingAddressPayload  `json:"shipping_address"`
	Payment         paymentInfoPayload      `json:"payment"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type orderItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
	Price     string `json:"price"`
}

type orderResponse struct {
	ID              string                 `json:"id"`
	BuyerID         string                 `json:"buyer_id"`
	Status          domain.OrderStatus     `json:"status"`
	Items           []orderItemResponse    `json:"items"`
	ShippingAddress shippingAddressPayload `json:"shipping_address"`
	Payment         paymentInfoPayload     `json:"payment"`
	Amount          string                 `json:"amount"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Price:     domain.MoneyString(item.PriceMinor),
		})
	}
	return orderResponse{
		ID:      o.ID,
		BuyerID: o.BuyerID,
		Status:  o.Status,
		Items:   items,
		ShippingAddress: shippingAddressPayload{
			Street:     o.ShippingAddress.Street,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		Payment: paymentInfoPayload{
			Method:        o.PaymentInfo.Method,
			Status:        o.PaymentInfo.Status,
			TransactionID: o.PaymentInfo.TransactionID,
		},
		Amount:    domain.MoneyString(o.AmountMinor),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	return result
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toTimelineResponses(events []domain.TimelineEvent) []timelineEventResponse {
	result := make([]timelineEventResponse, 0, len(events))
	for _, e := range events {
		result = append(result, timelineEventResponse{
			Type:     e.Type,
			Reason:   e.Reason,
			Occurred: e.Occurred,
		})
	}
	return result
}
