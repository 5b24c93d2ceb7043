package services

import (
	"context"
	"time"

	"txsummary/internal/core"
	"txsummary/internal/storage"
)

// Aggregator is the slice of storage the summary engine needs.
type Aggregator interface {
	AggregateByUser(ctx context.Context, userID int64, lower, upper *time.Time) (storage.AggregateResult, error)
}

// SummaryService answers per-user aggregate queries over an optional
// inclusive date range.
type SummaryService struct {
	store Aggregator
}

func NewSummaryService(store Aggregator) *SummaryService {
	return &SummaryService{store: store}
}

// Summarize returns count/min/max/mean for a user's transactions.
// Both dates are inclusive of their full calendar day: start lower-bounds
// at start 00:00:00, end upper-bounds exclusively at the day after end.
func (s *SummaryService) Summarize(ctx context.Context, userID int64, start, end *core.Date) (core.Summary, error) {
	if start != nil && end != nil && end.Before(start.Time) {
		return core.Summary{}, core.ErrInvalidRange
	}

	var lower, upper *time.Time
	if start != nil {
		t := start.StartOfDay()
		lower = &t
	}
	if end != nil {
		t := end.NextDay()
		upper = &t
	}

	res, err := s.store.AggregateByUser(ctx, userID, lower, upper)
	if err != nil {
		return core.Summary{}, err
	}
	if res.Count == 0 {
		return core.Summary{}, core.ErrNoTransactions
	}

	summary := core.Summary{
		UserID: userID,
		Start:  start,
		End:    end,
		Count:  res.Count,
	}
	if res.Min.Valid {
		v := res.Min.Float64
		summary.Min = &v
	}
	if res.Max.Valid {
		v := res.Max.Float64
		summary.Max = &v
	}
	if res.Mean.Valid {
		v := res.Mean.Float64
		summary.Mean = &v
	}

	return summary, nil
}
