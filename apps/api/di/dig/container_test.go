package dig_container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/ticket"
	"github.com/paridhisingla/unisync/core/user"
	emailsvc "github.com/paridhisingla/unisync/services/email"
	"github.com/paridhisingla/unisync/storage/database/sqlxrepos"
	"github.com/paridhisingla/unisync/testutil"
)

type seederStub struct {
	name   string
	floors []int64
}

func (s *seederStub) Seed(_ context.Context, name string, floors ...int64) (bool, error) {
	s.name, s.floors = name, floors
	return true, nil
}

func Test_seedTicketSequence(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	users := sqlxrepos.NewUserRepository(db)
	svc := complaint.NewService(
		sqlxrepos.NewComplaintRepository(db),
		ticket.NewGenerator(sqlxrepos.NewSequenceRepository(db)),
		user.NewService(conf, users, mailSvc), mailSvc, logger,
	)
	amy := testutil.CreateStudent(t, users, "amy")

	t.Run("empty database", func(t *testing.T) {
		seeder := new(seederStub)
		require.NoError(t, seedTicketSequence(ctx, seeder, db, logger))
		assert.Equal(t, ticket.SequenceName, seeder.name)
		assert.Equal(t, []int64{0, 0}, seeder.floors)
	})

	var last complaint.Complaint
	for i := 0; i < 3; i++ {
		c, err := svc.Create(ctx, amy, complaint.NewComplaint{Category: complaint.CategoryHostel, Subject: "Leak", Description: "Room A1"})
		require.NoError(t, err)
		last = c
	}
	require.NoError(t, svc.Delete(ctx, last.ID))

	t.Run("after database tickets", func(t *testing.T) {
		seeder := new(seederStub)
		require.NoError(t, seedTicketSequence(ctx, seeder, db, logger))
		// a deleted complaint still consumed its number
		assert.Equal(t, []int64{2, 3}, seeder.floors)
	})
}
