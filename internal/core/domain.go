package core

import (
	"time"
)

// RequiredColumns is the column set every uploaded CSV must contain.
// Extra columns are permitted and ignored.
var RequiredColumns = []string{
	"transaction_id",
	"user_id",
	"product_id",
	"timestamp",
	"transaction_amount",
}

type (
	// Date is a calendar date (no time-of-day component).
	Date struct {
		time.Time
	}

	// Amount is a nullable transaction amount. An empty CSV field is a
	// valid NULL value, not a cast failure.
	Amount struct {
		Value float64
		Valid bool
	}

	// Transaction is one validated record ready for insertion.
	Transaction struct {
		TransactionID string
		UserID        int64
		ProductID     int64
		Timestamp     time.Time
		Amount        Amount
	}

	// Summary holds per-user aggregate statistics over an optional
	// inclusive date range. Min/Max/Mean are nil when no matched row
	// carries a non-NULL amount; Count always reflects row presence.
	Summary struct {
		UserID int64
		Start  *Date
		End    *Date
		Count  int64
		Min    *float64
		Max    *float64
		Mean   *float64
	}
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day (UTC).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// StartOfDay returns the timestamp at 00:00:00 on d.
func (d Date) StartOfDay() time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns the timestamp at 00:00:00 on the day after d. Used as
// the exclusive upper bound that makes an end date inclusive of its
// entire calendar day.
func (d Date) NextDay() time.Time {
	return d.StartOfDay().AddDate(0, 0, 1)
}

// NullAmount returns an absent amount.
func NullAmount() Amount {
	return Amount{}
}

// NewAmount returns a present amount.
func NewAmount(v float64) Amount {
	return Amount{Value: v, Valid: true}
}
