package models

import "time"

// Memory is one archived moment from the memories collection. Live video
// captures carry still placeholders that stand in for them during export.
type Memory struct {
	FrontImage           MediaReference  `json:"frontImage"`
	BackImage            MediaReference  `json:"backImage"`
	BTSMedia             *MediaReference `json:"btsMedia,omitempty"`
	PrimaryPlaceholder   *MediaReference `json:"primaryPlaceholder,omitempty"`
	SecondaryPlaceholder *MediaReference `json:"secondaryPlaceholder,omitempty"`
	Caption              *string         `json:"caption,omitempty"`
	IsLate               *bool           `json:"isLate,omitempty"`
	Date                 time.Time       `json:"date"`
	TakenTime            time.Time       `json:"takenTime"`
	Location             *Location       `json:"location,omitempty"`
	Moment               *time.Time      `json:"berealMoment,omitempty"`
}

// ID identifies the memory by its front-camera filename.
func (m Memory) ID() string {
	return m.FrontImage.Filename()
}

// HasBothImages reports whether both live captures are still images.
func (m Memory) HasBothImages() bool {
	return !m.FrontImage.IsVideo() && !m.BackImage.IsVideo()
}

// HasVideo reports whether any attached media is a video.
func (m Memory) HasVideo() bool {
	return m.FrontImage.IsVideo() || m.BackImage.IsVideo() || m.BTSMedia != nil
}

// FrontImageForExport substitutes the placeholder when the live front
// capture is a video.
func (m Memory) FrontImageForExport() MediaReference {
	if m.FrontImage.IsVideo() && m.PrimaryPlaceholder != nil {
		return *m.PrimaryPlaceholder
	}
	return m.FrontImage
}

// BackImageForExport substitutes the placeholder when the live back
// capture is a video.
func (m Memory) BackImageForExport() MediaReference {
	if m.BackImage.IsVideo() && m.SecondaryPlaceholder != nil {
		return *m.SecondaryPlaceholder
	}
	return m.BackImage
}
