package models

import (
	"time"
)

const (
	GuestTypePrimary = "primary"
	GuestTypeAdult   = "adult"
	GuestTypeChild   = "child"
)

type Guest struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	RegistrationID uint `gorm:"index;column:registration_id" json:"registrationId"`

	IsMainGuest bool   `json:"isMainGuest"`
	GuestType   string `gorm:"size:16" json:"guestType"`
	// Position is the guest's index within its type at submission time.
	Position int `json:"position"`

	FullName    string     `json:"fullName"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Age         *int       `json:"age,omitempty"`
	Gender      string     `gorm:"size:16" json:"gender"`

	IDType   string `gorm:"size:32" json:"idType,omitempty"`
	IDNumber string `gorm:"size:64" json:"idNumber,omitempty"`

	IDImageFrontPath string `json:"idImageFrontPath,omitempty"`
	IDImageBackPath  string `json:"idImageBackPath,omitempty"`
	LivePhotoPath    string `json:"livePhotoPath,omitempty"`

	Email string `json:"email,omitempty"`
}
