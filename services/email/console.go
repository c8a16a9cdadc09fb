package emailsvc

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/paridhisingla/unisync/core"
)

// ConsoleService writes emails to an io.Writer instead of sending them. Used in development and tests.
type ConsoleService struct {
	from        mail.Address
	subjPrefix  string
	appName     string
	frontendURL string
	logger      core.Logger
	out         io.Writer
	synchronous bool

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ConsoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *ConsoleService {
	return &ConsoleService{
		from:        conf.DefaultFromEmail(),
		subjPrefix:  "[" + conf.AppName + "] ",
		appName:     conf.AppName,
		frontendURL: conf.FrontendBaseURL,
		logger:      logger,
		out:         os.Stdout,
	}
}

// NewConsoleServiceMock returns a ConsoleService that renders messages synchronously and only records them.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *ConsoleService {
	svc := NewConsoleService(conf, logger)
	svc.out = io.Discard
	svc.synchronous = true
	return svc
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.synchronous {
			svc.sendMessage(msg)
		} else {
			go svc.sendMessage(msg)
		}
	}
}

// SentMessages returns the messages written so far.
func (svc *ConsoleService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	msgs := make([]core.EmailMessage, len(svc.sent))
	copy(msgs, svc.sent)
	return msgs
}

func (svc *ConsoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.appName, svc.frontendURL); err != nil {
		svc.logger.Error("rendering email", err, map[string]interface{}{"template": msg.TemplateName})
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err := svc.write(*msg); err != nil {
		svc.logger.Error("writing email", err)
	}
	svc.sent = append(svc.sent, *msg)
}

func (svc *ConsoleService) write(msg core.EmailMessage) error {
	body := new(strings.Builder)

	// header
	fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}

	altW := multipart.NewWriter(body)
	fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		if w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}}); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return err
	}

	_, err = io.WriteString(svc.out, body.String()+"\n")
	return err
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
