package models

import "time"

// ConversationImage is one photo shared in a chat, found on disk under
// the export's conversations/ tree.
type ConversationImage struct {
	ID             string
	Path           string
	ConversationID string
	Filename       string
	Date           *time.Time
}

// Comment is one text comment attached to a post.
type Comment struct {
	PostID  string `json:"postId"`
	Content string `json:"content"`
}
