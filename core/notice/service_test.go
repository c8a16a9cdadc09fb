package notice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
)

type memRepo struct {
	notices []Notice
}

func (r *memRepo) CreateNotice(_ context.Context, n Notice, _ ...core.DBExecutor) (Notice, error) {
	n.ID = "n" + string(rune('0'+len(r.notices)))
	r.notices = append(r.notices, n)
	return n, nil
}

func (r *memRepo) QueryNotices(_ context.Context, filter *QueryFilter, _ ...core.DBExecutor) ([]Notice, error) {
	var res []Notice
	for _, n := range r.notices {
		var ok bool
		for _, aud := range filter.Audiences {
			ok = ok || aud == n.Audience
		}
		if ok && (filter.IncludeExpired || !n.IsExpired(filter.Now)) {
			res = append(res, n)
		}
	}
	return res, nil
}

func (r *memRepo) GetNotice(_ context.Context, id string, _ ...core.DBExecutor) (Notice, error) {
	for _, n := range r.notices {
		if n.ID == id {
			return n, nil
		}
	}
	return Notice{}, ErrNotFound
}

func (r *memRepo) DeleteNotice(context.Context, string, ...core.DBExecutor) error { return nil }

type usersStub []user.User

func (u usersStub) Query(_ context.Context, filter *user.QueryFilter, _ []core.DBOrdering) ([]user.User, error) {
	var res []user.User
	for _, usr := range u {
		if len(filter.Roles) == 0 || usr.RoleStartsWith(filter.Roles[0]) {
			res = append(res, usr)
		}
	}
	return res, nil
}

type mailStub struct {
	mu   sync.Mutex
	sent []core.EmailMessage
}

func (m *mailStub) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		m.sent = append(m.sent, *msg)
	}
}

type feedStub struct {
	got []Notice
}

func (f *feedStub) Broadcast(n Notice) { f.got = append(f.got, n) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var (
	admin   = user.User{ID: "a", Name: "Admin", Email: "admin@test.cd", Roles: []string{user.RoleAdminOwner}}
	teacher = user.User{ID: "t", Name: "Teach", Email: "teach@test.cd", Roles: []string{user.RoleTeacher}}
	student = user.User{ID: "s", Name: "Stu", Email: "stu@test.cd", Roles: []string{user.RoleStudent}}
	noMail  = user.User{ID: "s2", Name: "Quiet", Roles: []string{user.RoleStudent}}
)

func TestNotice_VisibleTo(t *testing.T) {
	tests := []struct {
		audience string
		usr      user.User
		want     bool
	}{
		{AudienceAll, student, true},
		{AudienceStudents, student, true},
		{AudienceStudents, teacher, false},
		{AudienceTeachers, teacher, true},
		{AudienceAdmins, teacher, false},
		{AudienceAdmins, admin, true},
		{AudienceStudents, admin, true},
	}
	for _, tc := range tests {
		n := Notice{Audience: tc.audience}
		assert.Equal(t, tc.want, n.VisibleTo(tc.usr), "%s / %v", tc.audience, tc.usr.Roles)
	}

	assert.ElementsMatch(t, []string{AudienceAll, AudienceStudents}, Audiences(student))
	assert.Len(t, Audiences(admin), 4)
}

func TestService(t *testing.T) {
	now := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })

	ctx := context.Background()
	repo := new(memRepo)
	mails := new(mailStub)
	feed := new(feedStub)
	svc := NewService(repo, usersStub{admin, teacher, student, noMail}, mails, feed, nopLogger{})

	n, err := svc.Create(ctx, admin, NewNotice{Title: "Exams", Body: "Exams start monday", Audience: AudienceStudents, Notify: true})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, n.AuthorID)
	assert.Equal(t, now, n.PublishedAt)
	require.Len(t, feed.got, 1)

	// the student without an email address is skipped
	require.Len(t, mails.sent, 1)
	assert.Equal(t, student.Email, mails.sent[0].To[0].Address)
	assert.Equal(t, "notice", mails.sent[0].TemplateName)

	past := now.Add(-time.Hour)
	_, err = svc.Create(ctx, admin, NewNotice{Title: "Staff", Body: "Meeting", Audience: AudienceTeachers})
	require.NoError(t, err)
	repo.notices = append(repo.notices, Notice{ID: "old", Title: "Old", Audience: AudienceAll, ExpiresAt: &past})
	assert.Len(t, mails.sent, 1)

	got, err := svc.List(ctx, student, &QueryFilter{IncludeExpired: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Exams", got[0].Title)

	got, err = svc.List(ctx, admin, &QueryFilter{IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.GetByID(ctx, teacher, n.ID)
	assert.Equal(t, ErrNotFound, err)
	_, err = svc.GetByID(ctx, student, "old")
	assert.Equal(t, ErrNotFound, err)
	_, err = svc.GetByID(ctx, admin, "old")
	assert.NoError(t, err)
}
