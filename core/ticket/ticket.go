// Package ticket assigns human readable identifiers to complaints.
package ticket

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
)

const (
	Prefix = "CMP"

	// SequenceName is the name of the sequence record backing complaint ticket numbers.
	SequenceName = "complaint"
)

var idRegex = regexp.MustCompile(`^CMP-\d{4}(0[1-9]|1[0-2])-\d{4,}$`)

// Sequencer hands out strictly increasing numbers for a named sequence, starting at 1.
// Implementations must be atomic: two concurrent callers never get the same value.
type Sequencer interface {
	NextValue(ctx context.Context, name string, exec ...core.DBExecutor) (int64, error)
}

// Format returns `CMP-<YYYY><MM>-<NNNN>`, NNNN being seq zero-padded to 4 digits.
func Format(seq int64, at time.Time) string {
	return fmt.Sprintf("%s-%04d%02d-%04d", Prefix, at.Year(), int(at.Month()), seq)
}

// Valid reports whether id looks like a ticket id.
func Valid(id string) bool {
	return idRegex.MatchString(id)
}

type Generator struct {
	seq Sequencer
}

func NewGenerator(seq Sequencer) *Generator {
	return &Generator{seq: seq}
}

// Next draws a fresh sequence value and formats it for `at`.
// exec is forwarded to the sequencer so the draw can join the caller's transaction.
func (g *Generator) Next(ctx context.Context, at time.Time, exec ...core.DBExecutor) (string, error) {
	n, err := g.seq.NextValue(ctx, SequenceName, exec...)
	if err != nil {
		return "", errors.Wrap(err, "drawing ticket sequence")
	}
	if n < 1 {
		return "", errors.Errorf("invalid ticket sequence value %d", n)
	}
	return Format(n, at), nil
}
