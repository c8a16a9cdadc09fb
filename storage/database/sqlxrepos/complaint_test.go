package sqlxrepos

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/ticket"
	"github.com/paridhisingla/unisync/core/user"
	emailsvc "github.com/paridhisingla/unisync/services/email"
	"github.com/paridhisingla/unisync/testutil"
)

func TestSequenceRepository_NextValue(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewSequenceRepository(db)

	cur, err := repo.CurrentValue(ctx, "complaint")
	require.NoError(t, err)
	assert.Zero(t, cur)

	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextValue(ctx, "complaint")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := repo.NextValue(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	cur, err = repo.CurrentValue(ctx, "complaint")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)
}

func TestComplaint_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	users := NewUserRepository(db)
	userSvc := user.NewService(conf, users, mailSvc)
	svc := complaint.NewService(NewComplaintRepository(db), ticket.NewGenerator(NewSequenceRepository(db)), userSvc, mailSvc, logger)
	amy := testutil.CreateStudent(t, users, "amy")

	testutil.SetNow(t, date(2024, 5, 14))
	const n = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tickets = make(map[string]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.Create(ctx, amy, complaint.NewComplaint{
				Category:    "hostel",
				Subject:     "Leaking tap",
				Description: "Room A1",
				Priority:    "whenever",
			})
			if assert.NoError(t, err) {
				mu.Lock()
				tickets[c.TicketID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, tickets, n, "ticket ids are unique")
	for id := range tickets {
		assert.Regexp(t, `^CMP-202405-000[1-5]$`, id)
	}

	list, err := svc.Query(ctx, &complaint.QueryFilter{ComplainantID: amy.ID}, nil)
	require.NoError(t, err)
	require.Len(t, list, n)
	c := list[0]
	assert.Equal(t, complaint.StatusOpen, c.Status)
	assert.Equal(t, complaint.PriorityMedium, c.Priority, "unknown priorities fall back to medium")

	c, err = svc.UpdateStatus(ctx, c, complaint.UpdateStatus{Status: complaint.StatusInProgress})
	require.NoError(t, err)

	_, err = svc.Update(ctx, c, complaint.UpdateComplaint{Subject: "edited", Description: "edited"})
	assert.True(t, isInvalidState(err), "only open complaints can be edited")

	c, err = svc.UpdateStatus(ctx, c, complaint.UpdateStatus{Status: complaint.StatusResolved, ResolutionNote: "fixed"})
	require.NoError(t, err)
	assert.NotNil(t, c.ResolvedAt)
	assert.Equal(t, "fixed", c.ResolutionNote)

	_, err = svc.UpdateStatus(ctx, c, complaint.UpdateStatus{Status: complaint.StatusRejected})
	assert.True(t, isInvalidState(err))

	stale := list[1]
	stale.Status = complaint.StatusInProgress
	_, err = svc.UpdateStatus(ctx, stale, complaint.UpdateStatus{Status: complaint.StatusResolved})
	assert.True(t, isInvalidState(err), "stored status is still open")
}
