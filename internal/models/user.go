package models

import "time"

type Birthdate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type ProfilePicture struct {
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
	Height string `json:"height"`
	Width  string `json:"width"`
}

// User is the profile record from user.json.
type User struct {
	Username       string          `json:"username"`
	Fullname       string          `json:"fullname"`
	Birthdate      *Birthdate      `json:"birthdate,omitempty"`
	PhoneNumber    *string         `json:"phoneNumber,omitempty"`
	ClientVersion  *string         `json:"clientVersion,omitempty"`
	Device         *string         `json:"device,omitempty"`
	DeviceID       *string         `json:"deviceId,omitempty"`
	ProfilePicture *ProfilePicture `json:"profilePicture,omitempty"`
	Platform       *int            `json:"platform,omitempty"`
	CountryCode    *string         `json:"countryCode,omitempty"`
	Language       *string         `json:"language,omitempty"`
	Timezone       *string         `json:"timezone,omitempty"`
	Region         *string         `json:"region,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
}
