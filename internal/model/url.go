package model

import "time"

// URL is a single short-code mapping as stored in the urls table.
type URL struct {
	LongURL    string    `json:"long_url"`
	ShortCode  string    `json:"short_code"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateURLRequest struct {
	LongURL     string `json:"long_url" binding:"required"`
	CustomAlias string `json:"custom_alias"`
}

type CreateURLResponse struct {
	ShortURL string `json:"short_url"`
}

// ClickMetadata carries the request attributes captured at redirect time.
// All fields are optional.
type ClickMetadata struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// ClickEvent is the telemetry record handed to the message bus. The analytics
// consumer owns deserialization, aggregation and persistence.
type ClickEvent struct {
	ShortCode string    `json:"short_url"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
