package sqlxrepos

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
)

// counterTable describes a table holding a used/total capacity counter.
// The guards live in the UPDATE statements so that concurrent acquisitions can never overshoot the total.
type counterTable struct {
	resource string
	table    string
	total    string
	used     string
	notFound error
}

func (ct counterTable) read(ctx context.Context, repo baseRepo, exec []core.DBExecutor, id string) (capacity.Counter, error) {
	var row struct {
		Total int `db:"total"`
		Used  int `db:"used"`
	}
	q := fmt.Sprintf("SELECT %s AS total, %s AS used FROM %s WHERE id = ?", ct.total, ct.used, ct.table)
	if err := repo.get(ctx, exec, &row, q, id); err != nil {
		return capacity.Counter{}, trapErr(err, ct.notFound, "reading "+ct.resource+" counter")
	}
	return capacity.Counter{Resource: ct.resource, Total: row.Total, Used: row.Used}, nil
}

func (ct counterTable) acquire(ctx context.Context, repo baseRepo, exec []core.DBExecutor, id string) error {
	if !validID(id) {
		return ct.notFound
	}
	q := fmt.Sprintf("UPDATE %s SET %s = %s + 1 WHERE id = ? AND %s < %s", ct.table, ct.used, ct.used, ct.used, ct.total)
	n, err := repo.run(ctx, exec, q, id)
	if err != nil {
		return errors.Wrapf(err, "acquiring %s", ct.resource)
	}
	if n == 1 {
		return nil
	}
	c, err := ct.read(ctx, repo, exec, id)
	if err != nil {
		return err
	}
	return c.AcquireError()
}

// release gives one unit back. When shrink is set, the total is decreased as well (the unit left the stock).
func (ct counterTable) release(ctx context.Context, repo baseRepo, exec []core.DBExecutor, id string, shrink bool) error {
	if !validID(id) {
		return ct.notFound
	}
	set := fmt.Sprintf("%s = %s - 1", ct.used, ct.used)
	if shrink {
		set += fmt.Sprintf(", %s = %s - 1", ct.total, ct.total)
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND %s > 0", ct.table, set, ct.used)
	n, err := repo.run(ctx, exec, q, id)
	if err != nil {
		return errors.Wrapf(err, "releasing %s", ct.resource)
	}
	if n == 1 {
		return nil
	}
	c, err := ct.read(ctx, repo, exec, id)
	if err != nil {
		return err
	}
	return c.ReleaseError()
}

func (ct counterTable) resize(ctx context.Context, repo baseRepo, exec []core.DBExecutor, id string, total int) error {
	if !validID(id) {
		return ct.notFound
	}
	if total < 0 {
		return core.NewFieldError(ct.total, ct.total+" cannot be negative")
	}
	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ? AND %s <= ?", ct.table, ct.total, ct.used)
	n, err := repo.run(ctx, exec, q, total, id, total)
	if err != nil {
		return errors.Wrapf(err, "resizing %s", ct.resource)
	}
	if n == 1 {
		return nil
	}
	c, err := ct.read(ctx, repo, exec, id)
	if err != nil {
		return err
	}
	if err = c.Resize(total); err != nil {
		return err
	}
	return core.NewInvalidStateError(ct.resource, "concurrent update, try again")
}
