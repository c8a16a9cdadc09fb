package notice

import (
	"time"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
)

// Audiences
const (
	AudienceAll      = "all"
	AudienceStudents = "students"
	AudienceTeachers = "teachers"
	AudienceAdmins   = "admins"
)

// audienceRoles maps an audience to the role prefix of its members.
var audienceRoles = map[string]string{
	AudienceStudents: user.RoleStudent,
	AudienceTeachers: user.RoleTeacher,
	AudienceAdmins:   user.RoleAdmin,
}

type Notice struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Audience    string     `json:"audience"`
	AuthorID    string     `json:"author_id"`
	PublishedAt time.Time  `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (n Notice) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

// VisibleTo reports whether usr belongs to the audience of n. Admins see every notice.
func (n Notice) VisibleTo(usr user.User) bool {
	if n.Audience == AudienceAll || usr.IsAdmin() {
		return true
	}
	prefix, ok := audienceRoles[n.Audience]
	return ok && usr.RoleStartsWith(prefix)
}

// Audiences returns the audiences whose notices usr can see.
func Audiences(usr user.User) []string {
	if usr.IsAdmin() {
		return []string{AudienceAll, AudienceStudents, AudienceTeachers, AudienceAdmins}
	}
	auds := []string{AudienceAll}
	for _, aud := range []string{AudienceStudents, AudienceTeachers} {
		if usr.RoleStartsWith(audienceRoles[aud]) {
			auds = append(auds, aud)
		}
	}
	return auds
}

type NewNotice struct {
	Title     string     `json:"title" validate:"required,notblank,max=200"`
	Body      string     `json:"body" validate:"required,notblank"`
	Audience  string     `json:"audience" validate:"omitempty,oneof=all students teachers admins"`
	ExpiresAt *time.Time `json:"expires_at"`
	// Notify emails the notice to its audience.
	Notify bool `json:"notify"`
}

func (nn *NewNotice) Clean() {
	nn.Title = core.CleanString(nn.Title)
	nn.Body = core.CleanString(nn.Body)
	nn.Audience = core.CleanString(nn.Audience, true /* lower */)
	if nn.Audience == "" {
		nn.Audience = AudienceAll
	}
}

type QueryFilter struct {
	Audiences      []string  `query:"-"`
	Search         string    `query:"search"`
	IncludeExpired bool      `query:"include_expired"`
	Now            time.Time `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
