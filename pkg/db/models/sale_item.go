package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItem is one line of a sale. UnitPrice snapshots the vehicle price at
// the time of sale and is never re-read from the vehicle record.
type SaleItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleID     uuid.UUID       `gorm:"column:sale_id;type:uuid;not null" json:"sale_id"`
	VehicleID  uuid.UUID       `gorm:"column:vehicle_id;type:uuid;not null" json:"vehicle_id"`
	Quantity   int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null" json:"total_price"`
	Vehicle    *Vehicle        `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
