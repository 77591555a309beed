package model

import (
	"time"
)

// Event is the audit record persisted for every postback that passed the
// auth, dedup and rate gates. The same rows back the dedup window.
type Event struct {
	ID            int64
	ProfileID     int64
	TransactionID string
	Status        string
	CampaignID    string
	Source        string
	Country       string
	Revenue       string
	Processed     bool
	SentToChatID  *int64
	SentToTopicID *int64
	Error         *string
	CreatedAt     time.Time
}
