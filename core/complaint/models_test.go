package complaint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolutionDays(t *testing.T) {
	tests := []struct {
		priority string
		want     int
	}{
		{PriorityUrgent, 1},
		{PriorityHigh, 3},
		{PriorityMedium, 7},
		{PriorityLow, 14},
		{"", 7},
		{"critical", 7},
		{"URGENT", 7},
	}
	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolutionDays(tt.priority))
		})
	}
}

func TestExpectedResolution(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	createdAt := time.Date(2024, time.January, 30, 18, 45, 0, 0, loc)

	for p, days := range map[string]int{PriorityUrgent: 1, PriorityHigh: 3, PriorityMedium: 7, PriorityLow: 14, "bogus": 7} {
		got := ExpectedResolution(createdAt, p)
		assert.Equal(t, time.Duration(days)*24*time.Hour, got.Sub(createdAt), p)
		assert.Equal(t, loc, got.Location(), p)
		assert.Equal(t, createdAt.Hour(), got.Hour(), p)
	}
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, PriorityUrgent, NormalizePriority(" Urgent "))
	assert.Equal(t, PriorityMedium, NormalizePriority(""))
	assert.Equal(t, PriorityMedium, NormalizePriority("asap"))
	assert.Equal(t, PriorityLow, NormalizePriority("low"))
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{StatusOpen, StatusInProgress},
		{StatusOpen, StatusResolved},
		{StatusOpen, StatusRejected},
		{StatusInProgress, StatusResolved},
		{StatusInProgress, StatusRejected},
		{StatusResolved, StatusClosed},
		{StatusResolved, StatusInProgress},
		{StatusRejected, StatusClosed},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]string{
		{StatusOpen, StatusClosed},
		{StatusInProgress, StatusOpen},
		{StatusClosed, StatusOpen},
		{StatusClosed, StatusInProgress},
		{StatusRejected, StatusOpen},
		{"bogus", StatusOpen},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestComplaint_IsOverdue(t *testing.T) {
	due := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := Complaint{Status: StatusOpen, ExpectedResolutionAt: due}

	assert.False(t, c.IsOverdue(due))
	assert.True(t, c.IsOverdue(due.Add(time.Second)))

	c.Status = StatusInProgress
	assert.True(t, c.IsOverdue(due.Add(time.Hour)))

	for _, s := range []string{StatusResolved, StatusClosed, StatusRejected} {
		c.Status = s
		assert.False(t, c.IsOverdue(due.Add(48*time.Hour)), s)
	}
}
