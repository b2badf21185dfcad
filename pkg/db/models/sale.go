package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
)

// Sale is a customer order. OrderID carries the human-readable code
// (ORD-<year>-<sequence>) and is unique across all sales.
type Sale struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID       string              `gorm:"column:order_id;uniqueIndex:uq_sales_order_id;not null" json:"order_id"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null" json:"total_amount"`
	ItemCount     int                 `gorm:"column:item_count;not null" json:"item_count"`
	Status        enums.SaleStatus    `gorm:"column:status;type:text;not null;default:'Processing'" json:"status"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	Notes         *string             `gorm:"column:notes" json:"notes,omitempty"`
	Customer      *Customer           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Items         []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
