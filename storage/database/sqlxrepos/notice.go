package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/notice"
)

const noticeColumns = "id, title, body, audience, author_id, published_at, expires_at"

type noticeRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	Audience    string    `db:"audience"`
	AuthorID    string    `db:"author_id"`
	PublishedAt time.Time `db:"published_at"`
	ExpiresAt   null.Time `db:"expires_at"`
}

func (r noticeRow) notice() notice.Notice {
	return notice.Notice{
		ID:          r.ID,
		Title:       r.Title,
		Body:        r.Body,
		Audience:    r.Audience,
		AuthorID:    r.AuthorID,
		PublishedAt: r.PublishedAt.UTC(),
		ExpiresAt:   timePtr(r.ExpiresAt),
	}
}

type noticeRepository struct {
	baseRepo
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(exec core.DBExecutor) *noticeRepository {
	return &noticeRepository{baseRepo{exec: exec}}
}

func (repo noticeRepository) CreateNotice(ctx context.Context, n notice.Notice, exec ...core.DBExecutor) (notice.Notice, error) {
	row := noticeRow{
		ID:          newID(),
		Title:       n.Title,
		Body:        n.Body,
		Audience:    n.Audience,
		AuthorID:    n.AuthorID,
		PublishedAt: n.PublishedAt.UTC(),
		ExpiresAt:   nullTime(n.ExpiresAt),
	}
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO notices (`+noticeColumns+`)
		VALUES (:id, :title, :body, :audience, :author_id, :published_at, :expires_at)`, row)
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return row.notice(), nil
}

// QueryNotices filters expired notices out in Go: expiry is compared against filter.Now, not the database clock.
func (repo noticeRepository) QueryNotices(ctx context.Context, filter *notice.QueryFilter, exec ...core.DBExecutor) ([]notice.Notice, error) {
	var (
		where whereClause
		now   = core.NowFunc()
	)
	includeExpired := true
	if filter != nil {
		if len(filter.Audiences) > 0 {
			q, args, err := sqlxIn("audience IN (?)", filter.Audiences)
			if err != nil {
				return nil, errors.Wrap(err, "building audience filter")
			}
			where.add(q, args...)
		}
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(LOWER(title) LIKE ? OR LOWER(body) LIKE ?)", val, val)
		}
		includeExpired = filter.IncludeExpired
		if !filter.Now.IsZero() {
			now = filter.Now
		}
	}

	var rows []noticeRow
	q := "SELECT " + noticeColumns + " FROM notices" + where.String() + " ORDER BY published_at DESC"
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying notices")
	}
	notices := make([]notice.Notice, 0, len(rows))
	for _, r := range rows {
		n := r.notice()
		if !includeExpired && n.IsExpired(now) {
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}

func (repo noticeRepository) GetNotice(ctx context.Context, id string, exec ...core.DBExecutor) (notice.Notice, error) {
	if !validID(id) {
		return notice.Notice{}, notice.ErrNotFound
	}
	var row noticeRow
	if err := repo.get(ctx, exec, &row, "SELECT "+noticeColumns+" FROM notices WHERE id = ?", id); err != nil {
		return notice.Notice{}, trapErr(err, notice.ErrNotFound, "finding notice")
	}
	return row.notice(), nil
}

func (repo noticeRepository) DeleteNotice(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return notice.ErrNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM notices WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	if n == 0 {
		return notice.ErrNotFound
	}
	return nil
}
