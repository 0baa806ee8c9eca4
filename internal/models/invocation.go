package models

import "time"

// Invocation sources.
const (
	InvocationSourceProxy = "proxy"
	InvocationSourceTest  = "test"
	InvocationSourceAdHoc = "adhoc"
)

// Invocation records a single dispatch attempt.
type Invocation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	EndpointID string `gorm:"type:varchar(64);index" json:"endpoint_id"` // Related endpoint, empty for ad-hoc tests.
	Provider   string `gorm:"type:varchar(32);not null" json:"provider"`  // Provider tag.
	Source     string `gorm:"type:varchar(16);not null" json:"source"`    // proxy, test or adhoc.

	Success    bool   `gorm:"not null;default:false" json:"success"` // Whether the upstream call succeeded.
	StatusCode *int   `json:"status_code,omitempty"`                 // Upstream HTTP status when one was received.
	Error      string `gorm:"type:text" json:"error,omitempty"`      // Failure message.
	LatencyMs  int64  `gorm:"not null;default:0" json:"latency_ms"`  // Round-trip latency.

	RequestedAt time.Time `gorm:"not null;index" json:"requested_at"` // Request timestamp.
}
