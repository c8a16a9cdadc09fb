package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/fee"
)

const (
	feeColumns     = "id, student_id, title, category, amount_total, amount_paid, due_at, paid_at, version, created_at, updated_at"
	paymentColumns = "id, fee_id, amount, method, reference, recorded_by, paid_at"
)

var feeOrdering = map[string]string{
	"due_at":       "due_at",
	"created_at":   "created_at",
	"amount_total": "amount_total",
	"category":     "category",
	"title":        "title",
}

type feeRow struct {
	ID          string          `db:"id"`
	StudentID   string          `db:"student_id"`
	Title       string          `db:"title"`
	Category    string          `db:"category"`
	AmountTotal decimal.Decimal `db:"amount_total"`
	AmountPaid  decimal.Decimal `db:"amount_paid"`
	DueAt       time.Time       `db:"due_at"`
	PaidAt      null.Time       `db:"paid_at"`
	Version     int             `db:"version"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func toFeeRow(f fee.Fee) feeRow {
	return feeRow{
		ID:          f.ID,
		StudentID:   f.StudentID,
		Title:       f.Title,
		Category:    f.Category,
		AmountTotal: f.AmountTotal,
		AmountPaid:  f.AmountPaid,
		DueAt:       f.DueAt.UTC(),
		PaidAt:      nullTime(f.PaidAt),
		Version:     f.Version,
		CreatedAt:   f.CreatedAt.UTC(),
		UpdatedAt:   f.UpdatedAt.UTC(),
	}
}

func (r feeRow) fee() fee.Fee {
	return fee.Fee{
		ID:          r.ID,
		StudentID:   r.StudentID,
		Title:       r.Title,
		Category:    r.Category,
		AmountTotal: r.AmountTotal,
		AmountPaid:  r.AmountPaid,
		DueAt:       r.DueAt.UTC(),
		PaidAt:      timePtr(r.PaidAt),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type paymentRow struct {
	ID         string          `db:"id"`
	FeeID      string          `db:"fee_id"`
	Amount     decimal.Decimal `db:"amount"`
	Method     string          `db:"method"`
	Reference  string          `db:"reference"`
	RecordedBy string          `db:"recorded_by"`
	PaidAt     time.Time       `db:"paid_at"`
}

func (r paymentRow) payment() fee.Payment {
	return fee.Payment{
		ID:         r.ID,
		FeeID:      r.FeeID,
		Amount:     r.Amount,
		Method:     r.Method,
		Reference:  r.Reference,
		RecordedBy: r.RecordedBy,
		PaidAt:     r.PaidAt.UTC(),
	}
}

type feeRepository struct {
	baseRepo
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{baseRepo{exec: exec}}
}

func (repo feeRepository) CreateFee(ctx context.Context, f fee.Fee, exec ...core.DBExecutor) (fee.Fee, error) {
	f.ID = newID()
	f.Version = 1
	row := toFeeRow(f)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO fees (`+feeColumns+`)
		VALUES (:id, :student_id, :title, :category, :amount_total, :amount_paid, :due_at, :paid_at, :version, :created_at, :updated_at)`, row)
	if err != nil {
		return fee.Fee{}, trapErr(err, fee.ErrNotFound, "inserting fee")
	}
	return row.fee(), nil
}

func (repo feeRepository) QueryFees(ctx context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fee.Fee, error) {
	var where whereClause
	if filter != nil {
		if filter.StudentID != "" {
			where.add("student_id = ?", filter.StudentID)
		}
		if filter.Category != "" {
			where.add("category = ?", filter.Category)
		}
		if filter.Unpaid {
			where.add("amount_paid < amount_total")
		}
	}

	var rows []feeRow
	q := "SELECT " + feeColumns + " FROM fees" + where.String() + orderBy(ordering, feeOrdering, "due_at ASC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying fees")
	}
	fees := make([]fee.Fee, 0, len(rows))
	for _, r := range rows {
		fees = append(fees, r.fee())
	}
	return fees, nil
}

func (repo feeRepository) GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Fee, error) {
	if !validID(id) {
		return fee.Fee{}, fee.ErrNotFound
	}
	var row feeRow
	if err := repo.get(ctx, exec, &row, "SELECT "+feeColumns+" FROM fees WHERE id = ?", id); err != nil {
		return fee.Fee{}, trapErr(err, fee.ErrNotFound, "finding fee")
	}
	return row.fee(), nil
}

func (repo feeRepository) UpdateFee(ctx context.Context, f fee.Fee, exec ...core.DBExecutor) (fee.Fee, error) {
	row := toFeeRow(f)
	n, err := repo.run(ctx, exec, `
		UPDATE fees SET
			title = ?, amount_total = ?, amount_paid = ?, due_at = ?, paid_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		row.Title, row.AmountTotal, row.AmountPaid, row.DueAt, row.PaidAt, row.UpdatedAt, row.ID, row.Version)
	if err != nil {
		return fee.Fee{}, trapErr(err, fee.ErrNotFound, "updating fee")
	}
	if n == 0 {
		if _, err = repo.GetFee(ctx, f.ID, exec...); err != nil {
			return fee.Fee{}, err
		}
		return fee.Fee{}, core.ErrConflict
	}
	row.Version++
	return row.fee(), nil
}

func (repo feeRepository) DeleteFee(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return fee.ErrNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM fees WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	if n == 0 {
		return fee.ErrNotFound
	}
	return nil
}

func (repo feeRepository) CreatePayment(ctx context.Context, p fee.Payment, exec ...core.DBExecutor) (fee.Payment, error) {
	p.ID = newID()
	row := paymentRow{
		ID:         p.ID,
		FeeID:      p.FeeID,
		Amount:     p.Amount,
		Method:     p.Method,
		Reference:  p.Reference,
		RecordedBy: p.RecordedBy,
		PaidAt:     p.PaidAt.UTC(),
	}
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO fee_payments (`+paymentColumns+`)
		VALUES (:id, :fee_id, :amount, :method, :reference, :recorded_by, :paid_at)`, row)
	if err != nil {
		return fee.Payment{}, trapErr(err, fee.ErrNotFound, "inserting payment")
	}
	return row.payment(), nil
}

func (repo feeRepository) QueryPayments(ctx context.Context, feeID string, exec ...core.DBExecutor) ([]fee.Payment, error) {
	if !validID(feeID) {
		return []fee.Payment{}, nil
	}
	var rows []paymentRow
	if err := repo.selekt(ctx, exec, &rows, "SELECT "+paymentColumns+" FROM fee_payments WHERE fee_id = ? ORDER BY paid_at", feeID); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]fee.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.payment())
	}
	return payments, nil
}
