package models

import "time"

// Post is one primary-feed moment: simultaneous back and front captures.
type Post struct {
	Primary       MediaReference  `json:"primary"`
	Secondary     MediaReference  `json:"secondary"`
	BTSMedia      *MediaReference `json:"btsMedia,omitempty"`
	RetakeCounter *int            `json:"retakeCounter,omitempty"`
	Caption       *string         `json:"caption,omitempty"`
	Location      *Location       `json:"location,omitempty"`
	Visibility    []string        `json:"visibility,omitempty"`
	TakenAt       time.Time       `json:"takenAt"`
}

// ID identifies the post by its back-camera filename.
func (p Post) ID() string {
	return p.Primary.Filename()
}

// HasBothImages reports whether both captures are still images.
func (p Post) HasBothImages() bool {
	return !p.Primary.IsVideo() && !p.Secondary.IsVideo()
}

// HasVideo reports whether any attached media is a video.
func (p Post) HasVideo() bool {
	return p.Primary.IsVideo() || p.Secondary.IsVideo() || p.BTSMedia != nil
}
