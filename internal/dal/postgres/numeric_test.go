package postgres

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1100", "19.99", "-10.5", "0.01"} {
		d := decimal.RequireFromString(s)
		got := Decimal(Numeric(d))
		if !got.Equal(d) {
			t.Errorf("round trip of %s = %s", s, got)
		}
	}
}

func TestDecimalInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   pgtype.Numeric
	}{
		{name: "null", in: pgtype.Numeric{}},
		{name: "nan", in: pgtype.Numeric{NaN: true, Valid: true}},
		{name: "infinity", in: pgtype.Numeric{Int: big.NewInt(1), InfinityModifier: pgtype.Infinity, Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decimal(tt.in); !got.IsZero() {
				t.Errorf("Decimal = %s, want 0", got)
			}
		})
	}
}

func TestTimestamptz(t *testing.T) {
	if Timestamptz(nil).Valid {
		t.Error("nil time must be NULL")
	}
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	ts := Timestamptz(&now)
	if back := TimePtr(ts); back == nil || !back.Equal(now) {
		t.Errorf("TimePtr = %v, want %v", back, now)
	}
	if TimePtr(pgtype.Timestamptz{}) != nil {
		t.Error("NULL timestamp must unwrap to nil")
	}
}
