package sqlxrepos

import (
	"time"

	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isCapacityExceeded(err error) bool {
	_, ok := errors.Cause(err).(*core.CapacityExceededError)
	return ok
}

func isInvalidState(err error) bool {
	_, ok := errors.Cause(err).(*core.InvalidStateError)
	return ok
}

func isValidation(err error) bool {
	_, ok := errors.Cause(err).(*core.ValidationError)
	return ok
}
