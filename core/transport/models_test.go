package transport

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core"
)

func TestRoute_StopFee(t *testing.T) {
	r := Route{
		FlatFee: decimal.NewFromInt(100),
		Stops: []Stop{
			{Name: "Main Gate", Fee: decimal.NewFromInt(60)},
			{Name: "Library"},
		},
	}

	tests := []struct {
		name    string
		stop    string
		wantFee string
		wantErr bool
	}{
		{name: "empty stop uses flat fee", stop: "", wantFee: "100"},
		{name: "stop with own fee", stop: "Main Gate", wantFee: "60"},
		{name: "case-insensitive", stop: "  main gate ", wantFee: "60"},
		{name: "stop without own fee", stop: "Library", wantFee: "100"},
		{name: "unknown stop", stop: "Airport", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.StopFee(tc.stop)
			if tc.wantErr {
				require.Error(t, err)
				_, ok := err.(*core.ValidationError)
				assert.True(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantFee, got.String())
		})
	}
}

func TestCheckStops(t *testing.T) {
	assert.NoError(t, checkStops(nil))
	assert.NoError(t, checkStops([]Stop{{Name: "A"}, {Name: "B"}}))
	assert.Error(t, checkStops([]Stop{{Name: "A"}, {Name: "a"}}))
}

func TestRoute_Seats(t *testing.T) {
	r := Route{TotalSeats: 2, OccupiedSeats: 2}
	seats := r.Seats()
	assert.True(t, seats.IsFull())
	assert.Equal(t, 0, decorateRoute(r).AvailableSeats)
	assert.NotNil(t, decorateRoute(r).Stops)
}
