package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
)

// Vehicle is a unit of sellable dealership inventory. Status is always a
// projection of Stock and must be recomputed whenever Stock changes.
type Vehicle struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string              `gorm:"column:name;not null" json:"name"`
	Category    string              `gorm:"column:category;not null" json:"category"`
	Year        int                 `gorm:"column:year;not null" json:"year"`
	Make        string              `gorm:"column:make;not null" json:"make"`
	Model       string              `gorm:"column:model;not null" json:"model"`
	Stock       int                 `gorm:"column:stock;not null;default:0" json:"stock"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Status      enums.VehicleStatus `gorm:"column:status;type:text;not null" json:"status"`
	Description *string             `gorm:"column:description" json:"description,omitempty"`
	ImageURL    string              `gorm:"column:image_url;not null" json:"image_url"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
