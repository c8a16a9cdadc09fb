package sqlxrepos

import (
	"context"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/ticket"
)

type sequenceRepository struct {
	baseRepo
}

var _ ticket.Sequencer = (*sequenceRepository)(nil) // interface compliance check

func NewSequenceRepository(exec core.DBExecutor) *sequenceRepository {
	return &sequenceRepository{baseRepo{exec: exec}}
}

// NextValue increments the named sequence and returns its new value. The first value is 1.
func (repo sequenceRepository) NextValue(ctx context.Context, name string, exec ...core.DBExecutor) (int64, error) {
	var val int64
	err := repo.get(ctx, exec, &val, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`, name)
	if err != nil {
		return 0, trapErr(err, nil, "incrementing sequence "+name)
	}
	return val, nil
}

// CurrentValue returns the last value handed out for the named sequence, 0 when none was.
func (repo sequenceRepository) CurrentValue(ctx context.Context, name string, exec ...core.DBExecutor) (int64, error) {
	var val int64
	err := repo.get(ctx, exec, &val, "SELECT COALESCE(MAX(value), 0) FROM sequences WHERE name = ?", name)
	if err != nil {
		return 0, trapErr(err, nil, "reading sequence "+name)
	}
	return val, nil
}
