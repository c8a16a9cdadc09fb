// Package logsvc provides the core.Logger backed by Rollbar.
package logsvc

import (
	"fmt"
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/user"
)

// Levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// RollbarLogger prints every entry to a standard logger and reports it to Rollbar when a token is configured.
type RollbarLogger struct {
	std      *log.Logger
	minLevel int
	client   *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.NewAsync(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)

	minLevel := LevelInfo
	if conf.Debug {
		minLevel = LevelDebug
	}
	return &RollbarLogger{std: std, minLevel: minLevel, client: client}
}

// Enable turns reporting to Rollbar on or off. Entries are still printed.
func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

// Close waits for the pending Rollbar reports to be sent.
func (l *RollbarLogger) Close() {
	l.client.Close()
}

// extras splits args into the values reported to Rollbar and the user the entry concerns.
// expected fmt: error, map[string]interface{}, user.User
func extras(args []interface{}) (err error, fields map[string]interface{}, usr *user.User) {
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			if err == nil {
				err = v
			}
		case map[string]interface{}:
			if fields == nil {
				fields = make(map[string]interface{}, len(v))
			}
			for k, val := range v {
				fields[k] = val
			}
		case user.User:
			if usr == nil {
				u := v
				usr = &u
			}
		}
	}
	return err, fields, usr
}

func (l *RollbarLogger) report(level int, msg string, args []interface{}) {
	err, fields, usr := extras(args)
	if usr != nil {
		l.client.SetPerson(usr.ID, usr.Username, usr.Email)
	} else {
		l.client.ClearPerson()
	}

	rbLevel := [...]string{rollbar.DEBUG, rollbar.INFO, rollbar.WARN, rollbar.ERR, rollbar.CRIT}[level]
	if err != nil {
		if fields == nil {
			fields = make(map[string]interface{}, 1)
		}
		fields["message"] = msg
		l.client.ErrorWithExtras(rbLevel, err, fields)
		return
	}
	l.client.MessageWithExtras(rbLevel, msg, fields)
}

func (l *RollbarLogger) print(level int, msg string, args []interface{}) {
	var b strings.Builder
	b.WriteString(levelNames[level])
	b.WriteString(" ")
	b.WriteString(msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			fmt.Fprintf(&b, " user=%s", v.ID)
		case error:
			fmt.Fprintf(&b, " error=%+v", v)
		default:
			fmt.Fprintf(&b, " %v", v)
		}
	}
	l.std.Println(b.String())
}

func (l *RollbarLogger) log(level int, msg string, args []interface{}) {
	if level < l.minLevel {
		return
	}
	l.report(level, msg, args)
	l.print(level, msg, args)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(LevelFatal, msg, args)
	l.client.Close()
	l.std.Fatal(msg)
}
