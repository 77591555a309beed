package model

// Profile is a tenant: the owner of a postback secret and its delivery defaults.
type Profile struct {
	ID             int64  `yaml:"id"`
	Secret         string `yaml:"secret"`
	Enabled        bool   `yaml:"enabled"`
	DefaultChatID  int64  `yaml:"default_chat_id"`
	DefaultTopicID *int64 `yaml:"default_topic_id"`
	RateLimitRPS   int    `yaml:"rate_limit_rps"`
	DedupTTLSec    int    `yaml:"dedup_ttl_sec"`
}

// Defaults applied when a profile source leaves a limit unset.
const (
	DefaultRateLimitRPS = 27
	DefaultDedupTTLSec  = 3600
	DefaultPriority     = 100
)

// Destination is where a rendered postback is delivered.
type Destination struct {
	ChatID  int64
	TopicID *int64
}
