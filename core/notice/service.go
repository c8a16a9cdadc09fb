package notice

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
)

var ErrNotFound = core.NewNotFoundError("notice")

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice, exec ...core.DBExecutor) (Notice, error)
		// QueryNotices returns the notices of the filter audiences, newest first.
		QueryNotices(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Notice, error)
		GetNotice(ctx context.Context, id string, exec ...core.DBExecutor) (Notice, error)
		DeleteNotice(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	UserQuerier interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	// Broadcaster pushes published notices to connected clients.
	Broadcaster interface {
		Broadcast(n Notice)
	}

	Service struct {
		repo    Repository
		users   UserQuerier
		mailSvc core.EmailService
		feed    Broadcaster
		logger  core.Logger
	}
)

func NewService(repo Repository, users UserQuerier, mailSvc core.EmailService, feed Broadcaster, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, feed: feed, logger: logger}
}

func (nn *NewNotice) Validate(validate *validator.Validate) error {
	nn.Clean()
	if err := validate.Struct(nn); err != nil {
		return err
	}
	if nn.ExpiresAt != nil && !nn.ExpiresAt.After(core.NowFunc()) {
		return core.NewFieldError("expires_at", "expiry date must be in the future")
	}
	return nil
}

// Create publishes a notice, broadcasts it on the live feed and optionally emails its audience.
func (svc *Service) Create(ctx context.Context, author user.User, nn NewNotice) (Notice, error) {
	n, err := svc.repo.CreateNotice(ctx, Notice{
		Title:       nn.Title,
		Body:        nn.Body,
		Audience:    nn.Audience,
		AuthorID:    author.ID,
		PublishedAt: core.NowFunc(),
		ExpiresAt:   nn.ExpiresAt,
	})
	if err != nil {
		return Notice{}, err
	}

	if svc.feed != nil {
		svc.feed.Broadcast(n)
	}
	if nn.Notify {
		if err := svc.notify(ctx, n); err != nil {
			svc.logger.Error("emailing notice", err, n.ID)
		}
	}
	return n, nil
}

// notify emails n to every active member of its audience, one message per recipient.
func (svc *Service) notify(ctx context.Context, n Notice) error {
	active := true
	filter := &user.QueryFilter{IsActive: &active}
	if prefix, ok := audienceRoles[n.Audience]; ok {
		filter.Roles = []string{prefix}
	}
	users, err := svc.users.Query(ctx, filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying audience")
	}

	msgs := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		to, ok := usr.MailAddress()
		if !ok {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{to},
			Subject:      n.Title,
			TemplateName: "notice",
			TemplateData: mailData{Name: usr.Name, Notice: n},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return nil
}

type mailData struct {
	Name string
	Notice
}

// List returns the notices visible to usr. Expired notices are hidden unless the filter includes them.
func (svc *Service) List(ctx context.Context, usr user.User, filter *QueryFilter) ([]Notice, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Audiences = Audiences(usr)
	filter.Now = core.NowFunc()
	if !usr.IsAdmin() {
		filter.IncludeExpired = false
	}
	return svc.repo.QueryNotices(ctx, filter)
}

// GetByID returns a notice visible to usr. Expired or hidden notices are not found for non-admins.
func (svc *Service) GetByID(ctx context.Context, usr user.User, id string) (Notice, error) {
	n, err := svc.repo.GetNotice(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	if usr.IsAdmin() {
		return n, nil
	}
	if !n.VisibleTo(usr) || n.IsExpired(core.NowFunc()) {
		return Notice{}, ErrNotFound
	}
	return n, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteNotice(ctx, id)
}
