package models

import "time"

const (
	StatusAvailable   = "available"
	StatusSold        = "sold"
	StatusReserved    = "reserved"
	StatusMaintenance = "maintenance"
)

// ValidStatus reports whether s is a listing status.
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusSold, StatusReserved, StatusMaintenance:
		return true
	}
	return false
}

type Specifications struct {
	CPUCores  int    `json:"cpu_cores" bson:"cpu_cores" dynamodbav:"cpu_cores" yaml:"cpu_cores"`
	RAMGB     int    `json:"ram_gb" bson:"ram_gb" dynamodbav:"ram_gb" yaml:"ram_gb"`
	StorageGB int    `json:"storage_gb" bson:"storage_gb" dynamodbav:"storage_gb" yaml:"storage_gb"`
	OSType    string `json:"os_type" bson:"os_type" dynamodbav:"os_type" yaml:"os_type"`
}

// Listing is a VM offered on the marketplace. Price is USD per month.
type Listing struct {
	ID              string         `json:"id" bson:"_id" yaml:"id"`
	Name            string         `json:"name" bson:"name" yaml:"name"`
	Description     string         `json:"description" bson:"description" yaml:"description"`
	LongDescription string         `json:"long_description,omitempty" bson:"long_description,omitempty" yaml:"long_description"`
	Specifications  Specifications `json:"specifications" bson:"specifications" yaml:"specifications"`
	Price           float64        `json:"price" bson:"price" yaml:"price"`
	ImageType       string         `json:"image_type" bson:"image_type" yaml:"image_type"`
	ImageURL        string         `json:"image_url,omitempty" bson:"image_url,omitempty" yaml:"image_url"`
	Status          string         `json:"status" bson:"status" yaml:"status"`
	Tags            []string       `json:"tags" bson:"tags" yaml:"tags"`
	Features        []string       `json:"features" bson:"features" yaml:"features"`
	Regions         []string       `json:"regions" bson:"regions" yaml:"regions"`
	Provider        string         `json:"provider" bson:"provider" yaml:"provider"`
	OwnerID         string         `json:"owner_id" bson:"owner_id" yaml:"owner_id"`
	Featured        bool           `json:"featured" bson:"featured" yaml:"featured"`
	Rating          float64        `json:"rating" bson:"rating" yaml:"rating"`
	ReviewCount     int            `json:"review_count" bson:"review_count" yaml:"review_count"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at" yaml:"-"`
	UpdatedAt       *time.Time     `json:"updated_at" bson:"updated_at,omitempty" yaml:"-"`
	DeletedAt       *time.Time     `json:"-" bson:"deleted_at,omitempty" yaml:"-"`
}
