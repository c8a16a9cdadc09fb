package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/library"
)

const (
	bookColumns  = "id, title, author, isbn, category, total_copies, issued_copies, created_at, updated_at"
	issueColumns = "id, book_id, borrower_id, status, issued_at, due_at, returned_at, lost_at, fine, fine_paid"
)

var (
	bookOrdering = map[string]string{
		"title":        "title",
		"author":       "author",
		"category":     "category",
		"created_at":   "created_at",
		"total_copies": "total_copies",
	}
	issueOrdering = map[string]string{
		"issued_at": "issued_at",
		"due_at":    "due_at",
		"status":    "status",
	}

	bookCopies = counterTable{
		resource: "book",
		table:    "books",
		total:    "total_copies",
		used:     "issued_copies",
		notFound: library.ErrBookNotFound,
	}
)

type bookRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Author       string      `db:"author"`
	ISBN         null.String `db:"isbn"`
	Category     string      `db:"category"`
	TotalCopies  int         `db:"total_copies"`
	IssuedCopies int         `db:"issued_copies"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func toBookRow(b library.Book) bookRow {
	return bookRow{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		ISBN:         nullString(b.ISBN),
		Category:     b.Category,
		TotalCopies:  b.TotalCopies,
		IssuedCopies: b.IssuedCopies,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
	}
}

func (r bookRow) book() library.Book {
	return library.Book{
		ID:           r.ID,
		Title:        r.Title,
		Author:       r.Author,
		ISBN:         r.ISBN.String,
		Category:     r.Category,
		TotalCopies:  r.TotalCopies,
		IssuedCopies: r.IssuedCopies,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type issueRow struct {
	ID         string          `db:"id"`
	BookID     string          `db:"book_id"`
	BorrowerID string          `db:"borrower_id"`
	Status     string          `db:"status"`
	IssuedAt   time.Time       `db:"issued_at"`
	DueAt      time.Time       `db:"due_at"`
	ReturnedAt null.Time       `db:"returned_at"`
	LostAt     null.Time       `db:"lost_at"`
	Fine       decimal.Decimal `db:"fine"`
	FinePaid   bool            `db:"fine_paid"`
}

func toIssueRow(is library.Issue) issueRow {
	return issueRow{
		ID:         is.ID,
		BookID:     is.BookID,
		BorrowerID: is.BorrowerID,
		Status:     is.Status,
		IssuedAt:   is.IssuedAt.UTC(),
		DueAt:      is.DueAt.UTC(),
		ReturnedAt: nullTime(is.ReturnedAt),
		LostAt:     nullTime(is.LostAt),
		Fine:       is.FrozenFine,
		FinePaid:   is.FinePaid,
	}
}

func (r issueRow) issue() library.Issue {
	return library.Issue{
		ID:         r.ID,
		BookID:     r.BookID,
		BorrowerID: r.BorrowerID,
		Status:     r.Status,
		IssuedAt:   r.IssuedAt.UTC(),
		DueAt:      r.DueAt.UTC(),
		ReturnedAt: timePtr(r.ReturnedAt),
		LostAt:     timePtr(r.LostAt),
		FrozenFine: r.Fine,
		FinePaid:   r.FinePaid,
	}
}

type libraryRepository struct {
	baseRepo
}

var _ library.Repository = (*libraryRepository)(nil) // interface compliance check

func NewLibraryRepository(exec core.DBExecutor) *libraryRepository {
	return &libraryRepository{baseRepo{exec: exec}}
}

// Books

func (repo libraryRepository) CreateBook(ctx context.Context, b library.Book, exec ...core.DBExecutor) (library.Book, error) {
	b.ID = newID()
	b.IssuedCopies = 0
	row := toBookRow(b)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (:id, :title, :author, :isbn, :category, :total_copies, :issued_copies, :created_at, :updated_at)`, row)
	if err != nil {
		return library.Book{}, trapErr(err, library.ErrBookNotFound, "inserting book")
	}
	return row.book(), nil
}

func (repo libraryRepository) QueryBooks(ctx context.Context, filter *library.BookFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]library.Book, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(COALESCE(isbn, '')) LIKE ?)", val, val, val)
		}
		if filter.Category != "" {
			where.add("category = ?", filter.Category)
		}
		if filter.AvailableOnly {
			where.add("issued_copies < total_copies")
		}
	}

	var rows []bookRow
	q := "SELECT " + bookColumns + " FROM books" + where.String() + orderBy(ordering, bookOrdering, "title ASC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	books := make([]library.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.book())
	}
	return books, nil
}

func (repo libraryRepository) GetBook(ctx context.Context, id string, exec ...core.DBExecutor) (library.Book, error) {
	if !validID(id) {
		return library.Book{}, library.ErrBookNotFound
	}
	var row bookRow
	if err := repo.get(ctx, exec, &row, "SELECT "+bookColumns+" FROM books WHERE id = ?", id); err != nil {
		return library.Book{}, trapErr(err, library.ErrBookNotFound, "finding book")
	}
	return row.book(), nil
}

func (repo libraryRepository) UpdateBook(ctx context.Context, b library.Book, exec ...core.DBExecutor) (library.Book, error) {
	row := toBookRow(b)
	n, err := repo.namedExec(ctx, exec, `
		UPDATE books SET title = :title, author = :author, isbn = :isbn, category = :category, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return library.Book{}, trapErr(err, library.ErrBookNotFound, "updating book")
	}
	if n == 0 {
		return library.Book{}, library.ErrBookNotFound
	}
	return row.book(), nil
}

func (repo libraryRepository) ResizeBook(ctx context.Context, id string, total int, exec ...core.DBExecutor) error {
	return bookCopies.resize(ctx, repo.baseRepo, exec, id, total)
}

func (repo libraryRepository) DeleteBook(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return library.ErrBookNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM books WHERE id = ? AND issued_copies = 0", id)
	if err != nil {
		return errors.Wrap(err, "deleting book")
	}
	if n == 0 {
		if _, err = repo.GetBook(ctx, id, exec...); err != nil {
			return err
		}
		return core.NewInvalidStateError("book", "copies are still issued")
	}
	return nil
}

func (repo libraryRepository) AcquireCopy(ctx context.Context, bookID string, exec ...core.DBExecutor) error {
	return bookCopies.acquire(ctx, repo.baseRepo, exec, bookID)
}

func (repo libraryRepository) ReleaseCopy(ctx context.Context, bookID string, lost bool, exec ...core.DBExecutor) error {
	return bookCopies.release(ctx, repo.baseRepo, exec, bookID, lost)
}

// Issues

func (repo libraryRepository) CreateIssue(ctx context.Context, is library.Issue, exec ...core.DBExecutor) (library.Issue, error) {
	is.ID = newID()
	row := toIssueRow(is)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO book_issues (`+issueColumns+`)
		VALUES (:id, :book_id, :borrower_id, :status, :issued_at, :due_at, :returned_at, :lost_at, :fine, :fine_paid)`, row)
	if err != nil {
		return library.Issue{}, trapErr(err, library.ErrIssueNotFound, "inserting book issue")
	}
	return row.issue(), nil
}

func (repo libraryRepository) QueryIssues(ctx context.Context, filter *library.IssueFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]library.Issue, error) {
	var where whereClause
	if filter != nil {
		if filter.BookID != "" {
			where.add("book_id = ?", filter.BookID)
		}
		if filter.BorrowerID != "" {
			where.add("borrower_id = ?", filter.BorrowerID)
		}
		if filter.Status != "" {
			where.add("status = ?", filter.Status)
		}
		if filter.Overdue {
			where.add("status = ?", library.StatusIssued)
		}
	}

	var rows []issueRow
	q := "SELECT " + issueColumns + " FROM book_issues" + where.String() + orderBy(ordering, issueOrdering, "issued_at DESC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying book issues")
	}
	issues := make([]library.Issue, 0, len(rows))
	for _, r := range rows {
		issues = append(issues, r.issue())
	}
	return issues, nil
}

func (repo libraryRepository) GetIssue(ctx context.Context, id string, exec ...core.DBExecutor) (library.Issue, error) {
	if !validID(id) {
		return library.Issue{}, library.ErrIssueNotFound
	}
	var row issueRow
	if err := repo.get(ctx, exec, &row, "SELECT "+issueColumns+" FROM book_issues WHERE id = ?", id); err != nil {
		return library.Issue{}, trapErr(err, library.ErrIssueNotFound, "finding book issue")
	}
	return row.issue(), nil
}

func (repo libraryRepository) UpdateIssue(ctx context.Context, is library.Issue, fromStatus string, exec ...core.DBExecutor) (library.Issue, error) {
	row := toIssueRow(is)
	n, err := repo.run(ctx, exec, `
		UPDATE book_issues SET status = ?, returned_at = ?, lost_at = ?, fine = ?, fine_paid = ?
		WHERE id = ? AND status = ?`,
		row.Status, row.ReturnedAt, row.LostAt, row.Fine, row.FinePaid, row.ID, fromStatus)
	if err != nil {
		return library.Issue{}, errors.Wrap(err, "updating book issue")
	}
	if n == 0 {
		cur, err := repo.GetIssue(ctx, is.ID, exec...)
		if err != nil {
			return library.Issue{}, err
		}
		return library.Issue{}, core.NewInvalidStateError("book issue", "already "+cur.Status)
	}
	return row.issue(), nil
}

func (repo libraryRepository) MarkFinePaid(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return library.ErrIssueNotFound
	}
	n, err := repo.run(ctx, exec, "UPDATE book_issues SET fine_paid = ? WHERE id = ? AND fine_paid = ?", true, id, false)
	if err != nil {
		return errors.Wrap(err, "marking fine paid")
	}
	if n == 0 {
		if _, err = repo.GetIssue(ctx, id, exec...); err != nil {
			return err
		}
		return core.NewInvalidStateError("book issue", "fine already paid")
	}
	return nil
}
