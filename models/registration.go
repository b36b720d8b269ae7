package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Registration is one completed intake: the primary guest's stay details
// plus everyone registered with them.
type Registration struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ReferenceCode    string     `gorm:"column:reference_code;size:64;uniqueIndex" json:"reference"`
	RoomNumber       string     `gorm:"column:room_number;size:32" json:"roomNumber"`
	Purpose          string     `gorm:"column:purpose;size:255" json:"purpose"`
	CheckIn          *time.Time `gorm:"column:check_in" json:"checkIn,omitempty"`
	ExpectedCheckout *time.Time `gorm:"column:expected_checkout" json:"expectedCheckout,omitempty"`

	Phone    string `gorm:"column:phone;size:32" json:"phone"`
	Email    string `gorm:"column:email;size:255" json:"email"`
	State    string `gorm:"column:state;size:128" json:"state"`
	District string `gorm:"column:district;size:128" json:"district"`
	City     string `gorm:"column:city;size:128" json:"city"`
	Pincode  string `gorm:"column:pincode;size:16" json:"pincode"`

	Adults   int `gorm:"column:adults;default:0" json:"adults"`
	Children int `gorm:"column:children;default:0" json:"children"`

	// AccompanyingGuests keeps the submitted guest list as received.
	AccompanyingGuests datatypes.JSON `gorm:"column:accompanying_guests" json:"accompanyingGuests,omitempty"`

	Guests []Guest `gorm:"foreignKey:RegistrationID" json:"guests,omitempty"`
}
