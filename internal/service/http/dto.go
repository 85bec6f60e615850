package httpsvc

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type createUserRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName *string `json:"full_name"`
	Password string  `json:"password" validate:"required,min=6"`
}

type updateUserRequest struct {
	Email    domain.Optional[string] `json:"email"`
	FullName domain.Optional[string] `json:"full_name"`
	Password domain.Optional[string] `json:"password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

type createSellerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type sellerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toSellerResponse(s domain.Seller) sellerResponse {
	return sellerResponse{ID: s.ID, Name: s.Name, Email: s.Email, CreatedAt: s.CreatedAt}
}

type createProductRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Category    string           `json:"category" validate:"required"`
	SellerID    int64            `json:"seller_id" validate:"required,gt=0"`
}

type updateProductRequest struct {
	Name        domain.Optional[string]          `json:"name"`
	Description domain.Optional[string]          `json:"description"`
	Price       domain.Optional[decimal.Decimal] `json:"price"`
	Stock       domain.Optional[int]             `json:"stock"`
	Category    domain.Optional[string]          `json:"category"`
	SellerID    domain.Optional[int64]           `json:"seller_id"`
}

func (r updateProductRequest) toPatch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Category:    r.Category,
		SellerID:    r.SellerID,
	}
}

type productResponse struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
	Category    string      `json:"category"`
	SellerID    int64       `json:"seller_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Stock:       p.Stock,
		Category:    p.Category,
		SellerID:    p.SellerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

type orderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  *int  `json:"quantity" validate:"omitempty,gt=0"`
}

type createOrderRequest struct {
	UserID int64              `json:"user_id" validate:"required,gt=0"`
	Items  []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r createOrderRequest) toDomain() domain.PlaceOrderRequest {
	lines := make([]domain.OrderLine, 0, len(r.Items))
	for _, item := range r.Items {
		qty := 1
		if item.Quantity != nil {
			qty = *item.Quantity
		}
		lines = append(lines, domain.OrderLine{ProductID: item.ProductID, Quantity: qty})
	}
	return domain.PlaceOrderRequest{UserID: r.UserID, Items: lines}
}

type orderItemResponse struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	Status      string              `json:"status"`
	TotalAmount json.Number         `json:"total_amount"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: money(item.UnitPrice),
		})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: money(o.TotalAmount),
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// money кодирует сумму JSON-числом с двумя знаками после точки.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(domain.MoneyScale))
}
