package emailsvc

import (
	"bytes"
	"log"
	"net/http"
	"net/mail"
	"sync"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core"
	appfs "github.com/paridhisingla/unisync/fs"
	logsvc "github.com/paridhisingla/unisync/services/logger"
)

func testConfig() *core.Config {
	return &core.Config{AppName: "UniSync", Env: "TEST", TestMode: true, FrontendBaseURL: "http://campus.test"}
}

func testLogger(buf *bytes.Buffer) core.Logger {
	return logsvc.NewRollbarLogger(log.New(buf, "", 0), testConfig())
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	var logs bytes.Buffer
	logger := testLogger(&logs)
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, true, logger))

	svc := NewConsoleServiceMock(testConfig(), logger)
	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jane", Address: "jane@campus.test"}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Jane", "UID": "uid", "Token": "tok"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{
			To:           []mail.Address{{Address: "x@campus.test"}},
			Subject:      "broken",
			TemplateName: "does_not_exist",
		},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Password Reset", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Jane")
	assert.Contains(t, sent[0].TextContent, "http://campus.test")
	assert.NotEmpty(t, sent[0].HTMLContent)
	assert.Contains(t, logs.String(), "rendering email")
}

func TestSendgridService_Send(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int
		wantLog   bool
	}{
		{name: "accepted", statuses: []int{http.StatusAccepted}, wantCalls: 1},
		{name: "client error is not retried", statuses: []int{http.StatusBadRequest}, wantCalls: 1, wantLog: true},
		{name: "server error is retried", statuses: []int{http.StatusBadGateway, http.StatusAccepted}, wantCalls: 2},
		{
			name:      "gives up",
			statuses:  []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway},
			wantCalls: sendAttempts,
			wantLog:   true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var (
				logs  bytes.Buffer
				mu    sync.Mutex
				calls int
			)
			svc := NewSendgridService(testConfig(), testLogger(&logs))
			svc.backoff = 0
			svc.api = func(req rest.Request) (*rest.Response, error) {
				mu.Lock()
				defer mu.Unlock()
				assert.Equal(t, rest.Post, req.Method)
				status := tc.statuses[calls]
				calls++
				return &rest.Response{StatusCode: status, Body: "{}"}, nil
			}

			svc.send(core.EmailMessage{
				To:          []mail.Address{{Address: "jane@campus.test"}},
				Subject:     "Hello",
				TextContent: "hi",
			})
			assert.Equal(t, tc.wantCalls, calls)
			assert.Equal(t, tc.wantLog, logs.Len() > 0)
		})
	}
}

func TestSendgridService_Prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), testLogger(new(bytes.Buffer)))
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@campus.test"}},
		Bcc:         []mail.Address{{Address: "audit@campus.test"}},
		Subject:     "Hello",
		TextContent: "hi",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[UniSync] Hello", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].To, 1)
	assert.Len(t, m.Personalizations[0].BCC, 1)
	assert.Len(t, m.Content, 1)
}
