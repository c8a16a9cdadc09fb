package sqlxrepos

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/transport"
	"github.com/paridhisingla/unisync/testutil"
)

func TestTransport_Subscriptions(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	svc, err := transport.NewService(db, NewTransportRepository(db), testutil.NewConfig())
	require.NoError(t, err)
	users := NewUserRepository(db)
	amy := testutil.CreateStudent(t, users, "amy")
	ben := testutil.CreateStudent(t, users, "ben")

	r, err := svc.CreateRoute(ctx, transport.NewRoute{
		Name:       "Route 7",
		TotalSeats: 1,
		FlatFee:    decimal.NewFromInt(300),
		Stops: []transport.Stop{
			{Name: "Market", Fee: decimal.NewFromInt(200)},
			{Name: "Station"},
		},
	})
	require.NoError(t, err)

	r, err = svc.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, r.Stops, 2)
	assert.Equal(t, "Market", r.Stops[0].Name)
	assert.Equal(t, 1, r.AvailableSeats)

	_, err = svc.Subscribe(ctx, transport.NewSubscription{RouteID: r.ID, StudentID: amy.ID, StopName: "Nowhere"})
	assert.True(t, isValidation(err), "unknown stop")

	s, err := svc.Subscribe(ctx, transport.NewSubscription{RouteID: r.ID, StudentID: amy.ID, StopName: "market"})
	require.NoError(t, err)
	assert.Equal(t, capacity.StateActive, s.Status)
	assert.True(t, decimal.NewFromInt(200).Equal(s.FeeTotal), "fee: %s", s.FeeTotal)

	_, err = svc.Subscribe(ctx, transport.NewSubscription{RouteID: r.ID, StudentID: ben.ID})
	assert.True(t, isCapacityExceeded(err))

	s, err = svc.RecordPayment(ctx, s.ID, transport.NewPayment{Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)
	assert.True(t, s.Balance.IsZero())

	s, err = svc.End(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, capacity.StateExpired, s.Status)
	_, err = svc.End(ctx, s)
	assert.True(t, isInvalidState(err))

	// the flat fee applies to stops without their own fee
	s, err = svc.Subscribe(ctx, transport.NewSubscription{RouteID: r.ID, StudentID: ben.ID, StopName: "Station"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(s.FeeTotal), "fee: %s", s.FeeTotal)

	// stops are replaced on update
	r, err = svc.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	r, err = svc.UpdateRoute(ctx, r, transport.UpdateRoute{
		Name:  r.Name,
		Stops: []transport.Stop{{Name: "Campus Gate", Fee: decimal.NewFromInt(150)}},
	})
	require.NoError(t, err)
	require.Len(t, r.Stops, 1)
	assert.Equal(t, "Campus Gate", r.Stops[0].Name)

	zero := 0
	_, err = svc.UpdateRoute(ctx, r, transport.UpdateRoute{Name: r.Name, TotalSeats: &zero})
	assert.True(t, isCapacityExceeded(err))

	subs, err := svc.QuerySubscriptions(ctx, &transport.SubscriptionFilter{RouteID: r.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}
