package complaint

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/ticket"
	"github.com/paridhisingla/unisync/core/user"
)

// maxTicketAttempts bounds the retries on ticket id collisions.
const maxTicketAttempts = 3

var ErrNotFound = core.NewNotFoundError("complaint")

type (
	Repository interface {
		CreateComplaint(ctx context.Context, c Complaint, exec ...core.DBExecutor) (Complaint, error)
		QueryComplaints(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Complaint, error)
		GetComplaint(ctx context.Context, id string, exec ...core.DBExecutor) (Complaint, error)
		// UpdateComplaintStatus saves c only if its stored status is still fromStatus.
		UpdateComplaintStatus(ctx context.Context, c Complaint, fromStatus string, exec ...core.DBExecutor) (Complaint, error)
		DeleteComplaint(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountComplaints(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}

	// UserGetter finds complainants to notify.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		tickets *ticket.Generator
		users   UserGetter
		mailSvc core.EmailService
		logger  core.Logger
	}

	mailData struct {
		Name string
		Complaint
	}
)

func NewService(repo Repository, tickets *ticket.Generator, users UserGetter, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		tickets: tickets,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (nc *NewComplaint) Validate(validate *validator.Validate) error {
	nc.Clean()
	return validate.Struct(nc)
}

func (uc *UpdateComplaint) Validate(orig Complaint, validate *validator.Validate) error {
	if subj := core.CleanString(uc.Subject); subj != "" {
		uc.Subject = subj
	} else {
		uc.Subject = orig.Subject
	}
	if uc.Description == "" {
		uc.Description = orig.Description
	}
	if uc.Priority == "" {
		uc.Priority = orig.Priority
	} else {
		uc.Priority = NormalizePriority(uc.Priority)
	}
	return validate.Struct(uc)
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	us.ResolutionNote = core.CleanString(us.ResolutionNote)
	return validate.Struct(us)
}

// Create files a new complaint on behalf of complainant.
// The ticket id and the resolution deadline are set here, once.
func (svc *Service) Create(ctx context.Context, complainant user.User, nc NewComplaint) (Complaint, error) {
	now := core.NowFunc()
	priority := NormalizePriority(nc.Priority)
	c := Complaint{
		ComplainantID:        complainant.ID,
		Category:             nc.Category,
		Subject:              nc.Subject,
		Description:          nc.Description,
		Priority:             priority,
		Status:               StatusOpen,
		CreatedAt:            now,
		UpdatedAt:            now,
		ExpectedResolutionAt: ExpectedResolution(now, priority),
	}

	var err error
	for attempt := 1; attempt <= maxTicketAttempts; attempt++ {
		var tid string
		if tid, err = svc.tickets.Next(ctx, now); err != nil {
			return Complaint{}, errors.Wrap(err, "generating ticket id")
		}
		c.TicketID = tid

		var created Complaint
		created, err = svc.repo.CreateComplaint(ctx, c)
		if err == nil {
			svc.notify(complainant, created, "Complaint received: "+created.TicketID, "complaint_received")
			return svc.decorate(created), nil
		}
		if !core.IsDuplicate(err) {
			break
		}
		svc.logger.Warn(fmt.Sprintf("ticket id %s already taken (attempt %d)", tid, attempt), err)
	}
	return Complaint{}, errors.Wrap(err, "inserting complaint")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Complaint, error) {
	complaints, err := svc.repo.QueryComplaints(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range complaints {
		complaints[i] = svc.decorate(complaints[i])
	}
	return complaints, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Complaint, error) {
	c, err := svc.repo.GetComplaint(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	return svc.decorate(c), nil
}

// Update edits the content of a complaint that nobody has started working on.
func (svc *Service) Update(ctx context.Context, c Complaint, uc UpdateComplaint) (Complaint, error) {
	if c.Status != StatusOpen {
		return Complaint{}, core.NewInvalidStateError("complaint", "only open complaints can be edited")
	}
	c.Subject = uc.Subject
	c.Description = uc.Description
	c.Priority = uc.Priority
	c.UpdatedAt = core.NowFunc()

	updated, err := svc.repo.UpdateComplaintStatus(ctx, c, StatusOpen)
	if err != nil {
		return Complaint{}, err
	}
	return svc.decorate(updated), nil
}

// UpdateStatus moves c to us.Status. Resolving notifies the complainant.
func (svc *Service) UpdateStatus(ctx context.Context, c Complaint, us UpdateStatus) (Complaint, error) {
	if !CanTransition(c.Status, us.Status) {
		return Complaint{}, core.NewInvalidStateError("complaint", fmt.Sprintf("cannot go from %s to %s", c.Status, us.Status))
	}

	now := core.NowFunc()
	from := c.Status
	c.Status = us.Status
	c.UpdatedAt = now
	switch us.Status {
	case StatusResolved:
		c.ResolvedAt = &now
	case StatusInProgress:
		c.ResolvedAt = nil // reopened
	}
	if us.ResolutionNote != "" {
		c.ResolutionNote = us.ResolutionNote
	}

	updated, err := svc.repo.UpdateComplaintStatus(ctx, c, from)
	if err != nil {
		return Complaint{}, err
	}

	if updated.Status == StatusResolved {
		if complainant, err := svc.users.GetByID(ctx, updated.ComplainantID); err == nil {
			svc.notify(complainant, updated, "Complaint resolved: "+updated.TicketID, "complaint_resolved")
		} else if !core.IsNotFound(err) {
			svc.logger.Error("finding complainant", err)
		}
	}
	return svc.decorate(updated), nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteComplaint(ctx, id)
}

func (svc *Service) decorate(c Complaint) Complaint {
	c.Overdue = c.IsOverdue(core.NowFunc())
	return c
}

func (svc *Service) notify(usr user.User, c Complaint, subject, tmpl string) {
	to, ok := usr.MailAddress()
	if !ok {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: mailData{Name: usr.Name, Complaint: c},
	})
}
