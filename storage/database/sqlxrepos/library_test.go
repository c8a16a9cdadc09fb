package sqlxrepos

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/library"
	"github.com/paridhisingla/unisync/core/user"
	"github.com/paridhisingla/unisync/testutil"
)

func newLibraryService(t *testing.T) (*library.Service, user.Repository) {
	t.Helper()
	db := testutil.OpenDB(t)
	svc, err := library.NewService(db, NewLibraryRepository(db), testutil.NewConfig())
	require.NoError(t, err)
	return svc, NewUserRepository(db)
}

func TestLibrary_FineFrozenOnReturn(t *testing.T) {
	ctx := context.Background()
	svc, users := newLibraryService(t)
	jane := testutil.CreateStudent(t, users, "jane")

	testutil.SetNow(t, date(2024, 2, 20))
	b, err := svc.CreateBook(ctx, library.NewBook{Title: "The Go Programming Language", Author: "Donovan", TotalCopies: 1})
	require.NoError(t, err)
	is, err := svc.Issue(ctx, library.NewIssue{BookID: b.ID, BorrowerID: jane.ID, DueAt: date(2024, 3, 1)})
	require.NoError(t, err)
	assert.Equal(t, library.StatusIssued, is.Status)

	b, err = svc.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.AvailableCopies)

	// overdue: 4 days at 2/day
	testutil.SetNow(t, date(2024, 3, 5))
	is, err = svc.GetIssue(ctx, is.ID)
	require.NoError(t, err)
	assert.Equal(t, library.StatusOverdue, is.Status)
	assert.True(t, decimal.NewFromInt(8).Equal(is.Fine), "fine: %s", is.Fine)

	overdue, err := svc.QueryIssues(ctx, &library.IssueFilter{Overdue: true}, nil)
	require.NoError(t, err)
	assert.Len(t, overdue, 1)

	_, err = svc.PayFine(ctx, is)
	assert.True(t, isInvalidState(err), "fine cannot be paid before return")

	is, err = svc.Return(ctx, is)
	require.NoError(t, err)

	// the fine stops growing once returned
	testutil.SetNow(t, date(2024, 3, 20))
	is, err = svc.GetIssue(ctx, is.ID)
	require.NoError(t, err)
	assert.Equal(t, library.StatusReturned, is.Status)
	assert.True(t, decimal.NewFromInt(8).Equal(is.Fine), "fine: %s", is.Fine)

	b, err = svc.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.AvailableCopies)

	_, err = svc.Return(ctx, is)
	assert.True(t, isInvalidState(err), "already returned")

	is, err = svc.PayFine(ctx, is)
	require.NoError(t, err)
	assert.True(t, is.FinePaid)
	_, err = svc.PayFine(ctx, is)
	assert.True(t, isInvalidState(err), "already paid")
}

func TestLibrary_LostCopyLeavesStock(t *testing.T) {
	ctx := context.Background()
	svc, users := newLibraryService(t)
	jane := testutil.CreateStudent(t, users, "jane")

	b, err := svc.CreateBook(ctx, library.NewBook{Title: "SICP", Author: "Abelson", TotalCopies: 2})
	require.NoError(t, err)
	is, err := svc.Issue(ctx, library.NewIssue{BookID: b.ID, BorrowerID: jane.ID})
	require.NoError(t, err)

	_, err = svc.MarkLost(ctx, is)
	require.NoError(t, err)

	b, err = svc.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.TotalCopies)
	assert.Equal(t, 0, b.IssuedCopies)
	assert.Equal(t, 1, b.AvailableCopies)
}

func TestLibrary_ConcurrentIssues(t *testing.T) {
	ctx := context.Background()
	svc, users := newLibraryService(t)

	const (
		copies    = 3
		borrowers = 10
	)
	b, err := svc.CreateBook(ctx, library.NewBook{Title: "Popular", Author: "Someone", TotalCopies: copies})
	require.NoError(t, err)

	students := make([]user.User, borrowers)
	for i := range students {
		students[i] = testutil.CreateStudent(t, users, fmt.Sprintf("student%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		others    []error
	)
	for _, s := range students {
		wg.Add(1)
		go func(borrowerID string) {
			defer wg.Done()
			_, err := svc.Issue(ctx, library.NewIssue{BookID: b.ID, BorrowerID: borrowerID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case isCapacityExceeded(err):
				rejected++
			default:
				others = append(others, err)
			}
		}(s.ID)
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, copies, succeeded)
	assert.Equal(t, borrowers-copies, rejected)

	b, err = svc.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, copies, b.IssuedCopies)
	assert.Equal(t, 0, b.AvailableCopies)
}

func TestLibrary_ResizeAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, users := newLibraryService(t)
	jane := testutil.CreateStudent(t, users, "jane")

	b, err := svc.CreateBook(ctx, library.NewBook{Title: "Dune", Author: "Herbert", TotalCopies: 2})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, library.NewIssue{BookID: b.ID, BorrowerID: jane.ID})
	require.NoError(t, err)
	b, err = svc.GetBook(ctx, b.ID)
	require.NoError(t, err)

	zero := 0
	_, err = svc.UpdateBook(ctx, b, library.UpdateBook{Title: b.Title, Author: b.Author, TotalCopies: &zero})
	assert.True(t, isCapacityExceeded(err), "cannot shrink below issued copies")

	assert.True(t, isInvalidState(svc.DeleteBook(ctx, b)), "cannot delete a book on loan")

	_, err = svc.GetBook(ctx, "0e4f8e3c-1a51-4d0a-9a7f-000000000000")
	assert.Equal(t, library.ErrBookNotFound, errors.Cause(err))
}
