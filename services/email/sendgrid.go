package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/paridhisingla/unisync/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	sendAttempts     = 3
)

type SendgridService struct {
	key         string
	from        *sgmail.Email
	subjPrefix  string
	appName     string
	frontendURL string
	logger      core.Logger

	// overridden in tests
	api     func(req rest.Request) (*rest.Response, error)
	backoff time.Duration
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	from := conf.DefaultFromEmail()
	return &SendgridService{
		key:         conf.SendgridApiKey,
		from:        sgmail.NewEmail(from.Name, from.Address),
		subjPrefix:  "[" + conf.AppName + "] ",
		appName:     conf.AppName,
		frontendURL: conf.FrontendBaseURL,
		logger:      logger,
		api:         sendgrid.API,
		backoff:     time.Second,
	}
}

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go svc.sendMessage(msg)
	}
}

func (svc *SendgridService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.appName, svc.frontendURL); err != nil {
		svc.logger.Error("rendering email", err, map[string]interface{}{"template": msg.TemplateName})
		return
	}
	if msg.HasRecipients() && msg.HasContent() {
		svc.send(*msg)
	}
}

func (svc *SendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// send posts msg to SendGrid. Transport errors and 5xx responses are retried with a linear backoff.
func (svc *SendgridService) send(msg core.EmailMessage) {
	body := sgmail.GetRequestBody(svc.prepare(msg))

	for attempt := 1; attempt <= sendAttempts; attempt++ {
		req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
		req.Method = http.MethodPost
		req.Body = body

		res, err := svc.api(req)
		switch {
		case err == nil && res.StatusCode < http.StatusBadRequest:
			return
		case err == nil && res.StatusCode < http.StatusInternalServerError:
			svc.logger.Error(fmt.Sprintf("sending email - status: %d - body: %s", res.StatusCode, res.Body))
			return
		case attempt == sendAttempts:
			if err != nil {
				svc.logger.Error("sending email", err)
			} else {
				svc.logger.Error(fmt.Sprintf("sending email - status: %d - body: %s", res.StatusCode, res.Body))
			}
			return
		}
		time.Sleep(time.Duration(attempt) * svc.backoff)
	}
}
