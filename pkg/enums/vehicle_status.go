package enums

import "fmt"

// VehicleStatus classifies a vehicle's availability. It is a projection of
// the stock count and is never set independently.
type VehicleStatus string

const (
	VehicleStatusInStock    VehicleStatus = "In Stock"
	VehicleStatusLowStock   VehicleStatus = "Low Stock"
	VehicleStatusOutOfStock VehicleStatus = "Out of Stock"
)

var validVehicleStatuses = []VehicleStatus{
	VehicleStatusInStock,
	VehicleStatusLowStock,
	VehicleStatusOutOfStock,
}

// lowStockThreshold is the largest stock count still reported as Low Stock.
const lowStockThreshold = 2

// VehicleStatusForStock derives the status from a stock count:
// 0 is Out of Stock, 1-2 is Low Stock, 3+ is In Stock.
func VehicleStatusForStock(stock int) VehicleStatus {
	switch {
	case stock <= 0:
		return VehicleStatusOutOfStock
	case stock <= lowStockThreshold:
		return VehicleStatusLowStock
	default:
		return VehicleStatusInStock
	}
}

// String implements fmt.Stringer.
func (v VehicleStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VehicleStatus.
func (v VehicleStatus) IsValid() bool {
	for _, candidate := range validVehicleStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVehicleStatus converts raw input into a VehicleStatus.
func ParseVehicleStatus(value string) (VehicleStatus, error) {
	for _, candidate := range validVehicleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vehicle status %q", value)
}
