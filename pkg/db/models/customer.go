package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer holds contact details plus derived purchase statistics.
// PurchaseCount, TotalSpent and LastPurchase are maintained exclusively by
// the sales lifecycle; direct edits only touch name, email and phone.
type Customer struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	Email         string          `gorm:"column:email;uniqueIndex:uq_customers_email;not null" json:"email"`
	Phone         *string         `gorm:"column:phone" json:"phone,omitempty"`
	PurchaseCount int             `gorm:"column:purchase_count;not null;default:0" json:"purchase_count"`
	TotalSpent    decimal.Decimal `gorm:"column:total_spent;type:numeric(12,2);not null;default:0" json:"total_spent"`
	LastPurchase  *time.Time      `gorm:"column:last_purchase" json:"last_purchase,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
