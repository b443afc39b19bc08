package models

import "time"

// ImageStyle selects what the photo export writes per capture pair.
type ImageStyle string

const (
	StyleCombined ImageStyle = "combined"
	StyleSeparate ImageStyle = "separate"
	StyleBoth     ImageStyle = "both"
)

// FolderStructure selects the on-disk layout of the destination tree.
type FolderStructure string

const (
	FoldersByDate FolderStructure = "by-date"
	FoldersFlat   FolderStructure = "flat"
)

// OverlayPosition is a requested inset placement. Auto and All are
// request-time modifiers only; a resolved placement is always one of the
// four fixed corners.
type OverlayPosition string

const (
	PositionAuto        OverlayPosition = "auto"
	PositionAll         OverlayPosition = "all"
	PositionTopLeft     OverlayPosition = "top-left"
	PositionTopRight    OverlayPosition = "top-right"
	PositionBottomLeft  OverlayPosition = "bottom-left"
	PositionBottomRight OverlayPosition = "bottom-right"
)

// Corners lists the four fixed placements in render order.
var Corners = []OverlayPosition{
	PositionTopLeft,
	PositionTopRight,
	PositionBottomLeft,
	PositionBottomRight,
}

// IsFixed reports whether the position names a concrete corner.
func (p OverlayPosition) IsFixed() bool {
	switch p {
	case PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight:
		return true
	}
	return false
}

// ExportOptions configures a photo export run.
type ExportOptions struct {
	ImageStyle           ImageStyle
	OverlayPosition      OverlayPosition
	FolderStructure      FolderStructure
	IncludeConversations bool
	IncludeComments      bool
	IncludeVideos        bool
	IncludeBTS           bool
	Destination          string
}

// VideoContent selects what each time-lapse frame shows.
type VideoContent string

const (
	ContentBackOnly          VideoContent = "back"
	ContentFrontOnly         VideoContent = "front"
	ContentCombinedBackMain  VideoContent = "combined"
	ContentCombinedFrontMain VideoContent = "combined-front"
)

// VideoOptions configures a time-lapse render.
type VideoOptions struct {
	Content         VideoContent
	OverlayPosition OverlayPosition
	FramesPerSecond int
	TargetWidth     int // 0 keeps the native frame size
	TargetHeight    int
	DateOverlay     bool
	StartDate       *time.Time
	EndDate         *time.Time
	Destination     string
}
