package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// MarketStats is the per-event snapshot recomputed by the market-data
// service from live listings and settled transactions.
type MarketStats struct {
	AveragePrice decimal.Decimal `json:"average_price"`
	LowestPrice  decimal.Decimal `json:"lowest_price"`
	HighestPrice decimal.Decimal `json:"highest_price"`
	ListingCount int             `json:"listing_count"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Event struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Venue       string      `json:"venue"`
	StartTime   time.Time   `json:"start_time"`
	Sections    []string    `json:"sections"`
	Status      EventStatus `json:"status"`
	MarketStats MarketStats `json:"market_stats"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Upcoming reports whether the event can still accept offers and listings.
func (e *Event) Upcoming(now time.Time) bool {
	return e.Status == EventUpcoming && now.Before(e.StartTime)
}

func (e *Event) HasSection(section string) bool {
	for _, s := range e.Sections {
		if s == section {
			return true
		}
	}
	return false
}
