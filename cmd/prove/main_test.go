package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeQuery(t *testing.T) {
	tests := []struct {
		name    string
		dates   dateRange
		wantErr string
	}{
		{name: "valid", dates: dateRange{start: "2026-03-01", end: "2026-03-31"}},
		{name: "missing start", dates: dateRange{end: "2026-03-31"}, wantErr: "--start-date"},
		{name: "bad end", dates: dateRange{start: "2026-03-01", end: "31.03.2026"}, wantErr: "--end-date"},
		{name: "reversed", dates: dateRange{start: "2026-03-31", end: "2026-03-01"}, wantErr: "after end date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.dates.query("finance@example.com")

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "finance@example.com", q.Sender)
			assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), q.Since)
			// end date is inclusive, IMAP BEFORE is not
			assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), q.Before)
		})
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch(context.Background(), "frobnicate", nil)
	assert.ErrorContains(t, err, "unknown command")
}
