package domain

import "time"

// Resource types.
const (
	ResourceEquipment = "equipment"
	ResourceVehicle   = "vehicle"
	ResourceDevice    = "device"
	ResourceFacility  = "facility"
	ResourceOther     = "other"
)

// Resource statuses.
const (
	StatusAvailable   = "available"
	StatusInUse       = "in_use"
	StatusMaintenance = "maintenance"
	StatusRetired     = "retired"
)

// Resource is a tracked corporate asset.
type Resource struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	Location     string     `json:"location,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Description  string     `json:"description,omitempty"`
	AssignedTo   *string    `json:"assigned_to"`
	ImagePath    string     `json:"image_path,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	ValueCents   *int64     `json:"value_cents,omitempty"`
	CreatedBy    *string    `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ResourceFilter narrows resource listings.
type ResourceFilter struct {
	Type       string
	Status     string
	AssignedTo string
	Search     string
	Limit      int
	Offset     int
}
