package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/dashboard"
	"github.com/paridhisingla/unisync/core/fee"
	"github.com/paridhisingla/unisync/core/hostel"
	"github.com/paridhisingla/unisync/core/library"
	"github.com/paridhisingla/unisync/core/notice"
	"github.com/paridhisingla/unisync/core/user"
	emailsvc "github.com/paridhisingla/unisync/services/email"
	"github.com/paridhisingla/unisync/testutil"
)

func TestNoticeRepository_Visibility(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	users := NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	svc := notice.NewService(NewNoticeRepository(db), user.NewService(conf, users, mailSvc), mailSvc, nil, logger)

	admin := testutil.CreateUser(t, users, "Admin", "admin", "admin@campus.test", "", []string{user.RoleAdmin}, true)
	amy := testutil.CreateStudent(t, users, "amy")
	teacher := testutil.CreateUser(t, users, "Prof", "prof", "prof@campus.test", "", []string{user.RoleTeacher}, true)

	testutil.SetNow(t, date(2024, 4, 1))
	tomorrow := date(2024, 4, 2)
	for _, nn := range []notice.NewNotice{
		{Title: "Welcome", Body: "Semester starts", Audience: notice.AudienceAll},
		{Title: "Exams", Body: "Timetable out", Audience: notice.AudienceStudents},
		{Title: "Staff meeting", Body: "Room 4", Audience: notice.AudienceTeachers, ExpiresAt: &tomorrow},
	} {
		_, err := svc.Create(ctx, admin, nn)
		require.NoError(t, err)
	}

	visible := func(t *testing.T, usr user.User, filter *notice.QueryFilter) []string {
		t.Helper()
		notices, err := svc.List(ctx, usr, filter)
		require.NoError(t, err)
		titles := make([]string, 0, len(notices))
		for _, n := range notices {
			titles = append(titles, n.Title)
		}
		return titles
	}

	assert.ElementsMatch(t, []string{"Welcome", "Exams"}, visible(t, amy, nil))
	assert.ElementsMatch(t, []string{"Welcome", "Staff meeting"}, visible(t, teacher, nil))
	assert.Len(t, visible(t, admin, nil), 3)
	assert.Equal(t, []string{"Exams"}, visible(t, amy, &notice.QueryFilter{Search: "timetable"}))

	// expired notices disappear, unless an admin asks for them
	testutil.SetNow(t, date(2024, 4, 3))
	assert.Equal(t, []string{"Welcome"}, visible(t, teacher, &notice.QueryFilter{IncludeExpired: true}))
	assert.Len(t, visible(t, admin, nil), 2)
	assert.Len(t, visible(t, admin, &notice.QueryFilter{IncludeExpired: true}), 3)

	all, err := svc.List(ctx, admin, &notice.QueryFilter{IncludeExpired: true})
	require.NoError(t, err)
	for _, n := range all {
		if n.Title == "Exams" {
			_, err = svc.GetByID(ctx, teacher, n.ID)
			assert.Equal(t, notice.ErrNotFound, errors.Cause(err))
			require.NoError(t, svc.Delete(ctx, n.ID))
			assert.Equal(t, notice.ErrNotFound, errors.Cause(svc.Delete(ctx, n.ID)))
		}
	}
}

func TestDashboardRepository_Stats(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	conf := testutil.NewConfig()
	users := NewUserRepository(db)
	amy := testutil.CreateStudent(t, users, "amy")
	ben := testutil.CreateStudent(t, users, "ben")
	testutil.CreateUser(t, users, "Prof", "prof", "prof@campus.test", "", []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, users, "Old", "old", "old@campus.test", "", []string{user.RoleStudent}, false)

	hostels, err := hostel.NewService(db, NewHostelRepository(db), conf)
	require.NoError(t, err)
	h, err := hostels.CreateHostel(ctx, hostel.NewHostel{Name: "North", Kind: "mixed", TotalBeds: 4})
	require.NoError(t, err)
	_, err = hostels.Allocate(ctx, hostel.NewAllocation{HostelID: h.ID, StudentID: amy.ID})
	require.NoError(t, err)

	fees, err := fee.NewService(db, NewFeeRepository(db), conf)
	require.NoError(t, err)
	for _, amount := range []string{"120.50", "79.50"} {
		_, err = fees.Create(ctx, fee.NewFee{
			StudentID:   ben.ID,
			Title:       "Fee",
			Category:    fee.CategoryOther,
			AmountTotal: decimal.RequireFromString(amount),
			DueAt:       time.Now().Add(24 * time.Hour),
		})
		require.NoError(t, err)
	}

	_, err = NewComplaintRepository(db).CreateComplaint(ctx, complaint.Complaint{
		TicketID:             "CMP-202401-0001",
		ComplainantID:        amy.ID,
		Category:             "hostel",
		Subject:              "Noise",
		Priority:             complaint.PriorityLow,
		Status:               complaint.StatusOpen,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
		ExpectedResolutionAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	lib, err := library.NewService(db, NewLibraryRepository(db), conf)
	require.NoError(t, err)
	svc := dashboard.NewService(NewDashboardRepository(db), lib)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Students)
	assert.Equal(t, int64(1), stats.Teachers)
	assert.Equal(t, int64(0), stats.Courses)
	assert.Equal(t, int64(1), stats.OpenComplaints)
	assert.Equal(t, int64(0), stats.OverdueIssues)
	assert.Equal(t, int64(4), stats.HostelBeds)
	assert.Equal(t, int64(1), stats.HostelOccupied)
	assert.True(t, decimal.NewFromInt(200).Equal(stats.OutstandingFeeBalance), "balance: %s", stats.OutstandingFeeBalance)
}
