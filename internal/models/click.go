package models

import (
	"time"
)

// Click is one audit row recorded per successful resolution. The rows
// back the raw stats endpoints; the advisory counter lives on Link.
type Click struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	Code      string    `json:"code"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
	ClickedAt time.Time `json:"clicked_at"`
}

// ClickEvent is the in-flight form of a click, queued to the worker
// pool by the resolution path.
type ClickEvent struct {
	Code      string
	IPAddress string
	UserAgent string
	Referer   string
}

type ClickStats struct {
	Code         string `json:"code"`
	ClickCount   int64  `json:"click_count"`
	TotalClicks  int64  `json:"total_clicks"`
	UniqueClicks int64  `json:"unique_clicks"`
}

type DailyClickStats struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}
