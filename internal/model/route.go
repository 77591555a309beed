package model

// MatchBy selects which postback field a route compares against.
type MatchBy string

const (
	MatchByCampaignID MatchBy = "campaign_id"
	MatchBySource     MatchBy = "source"
	MatchByAny        MatchBy = "any"
)

// Valid reports whether m is one of the known match kinds.
func (m MatchBy) Valid() bool {
	switch m {
	case MatchByCampaignID, MatchBySource, MatchByAny:
		return true
	default:
		return false
	}
}

// Route is a single routing rule of a profile. Lower Priority wins; ties
// are broken by ID.
type Route struct {
	ID            int64    `yaml:"id"`
	ProfileID     int64    `yaml:"-"`
	MatchBy       MatchBy  `yaml:"match_by"`
	MatchValue    string   `yaml:"match_value"`
	IsRegex       bool     `yaml:"is_regex"`
	TargetChatID  int64    `yaml:"target_chat_id"`
	TargetTopicID *int64   `yaml:"target_topic_id"`
	StatusFilter  []string `yaml:"status_filter"`
	GeoFilter     []string `yaml:"geo_filter"`
	Priority      int      `yaml:"priority"`
}
