// Package emailsvc provides the core.EmailService implementations.
package emailsvc

import "github.com/paridhisingla/unisync/core"

// NewService returns the SendGrid service when an API key is configured, the console service otherwise.
func NewService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.SendgridApiKey != "" && !conf.TestMode {
		return NewSendgridService(conf, logger)
	}
	if conf.TestMode {
		return NewConsoleServiceMock(conf, logger)
	}
	return NewConsoleService(conf, logger)
}
