package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core/library"
	"github.com/paridhisingla/unisync/core/user"
)

type libraryApi struct {
	svc      *library.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerLibraryAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *library.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := libraryApi{svc: svc, users: users, validate: validate}

	lg := g.Group("/library", jwt)

	bg := lg.Group("/books")
	bg.GET("", api.queryBooks)
	bg.POST("", api.createBook, adminMiddleware())
	bdg := bg.Group("/:id", objectMiddleware(api.loadBook))
	bdg.GET("", api.retrieveBook)
	bdg.PUT("", api.updateBook, adminMiddleware())
	bdg.DELETE("", api.destroyBook, adminMiddleware())

	ig := lg.Group("/issues")
	ig.GET("", api.queryIssues)
	ig.POST("", api.issue, adminMiddleware())
	idg := ig.Group("/:id", objectMiddleware(api.loadIssue))
	idg.GET("", api.retrieveIssue)
	idg.POST("/return", api.returnIssue, adminMiddleware())
	idg.POST("/lost", api.markLost, adminMiddleware())
	idg.POST("/pay-fine", api.payFine, adminMiddleware())
}

func (api *libraryApi) loadBook(ctx echo.Context, id string) (interface{}, error) {
	b, err := api.svc.GetBook(ctx.Request().Context(), id)
	return b, errors.Wrap(err, "finding book")
}

// loadIssue finds a loan visible to the context user: admins see all loans, others their own.
func (api *libraryApi) loadIssue(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	is, err := api.svc.GetIssue(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding book issue")
	}
	if err = ownerOrAdmin(ctxUsr, is.BorrowerID); err != nil {
		return nil, err
	}
	return is, nil
}

// Books

func (api *libraryApi) createBook(ctx echo.Context) error {
	var data library.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	b, err := api.svc.CreateBook(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating book")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *libraryApi) queryBooks(ctx echo.Context) error {
	filter := new(library.BookFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to BookFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	books, err := api.svc.QueryBooks(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	if books == nil {
		books = []library.Book{}
	}
	return ctx.JSON(http.StatusOK, books)
}

func (api *libraryApi) retrieveBook(ctx echo.Context) error {
	b, ok := ctx.Get(contextObjectKey).(library.Book)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book from context")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *libraryApi) updateBook(ctx echo.Context) error {
	b, ok := ctx.Get(contextObjectKey).(library.Book)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book from context")
	}
	var data library.UpdateBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBook")
	}
	if err := data.Validate(b, api.validate); err != nil {
		return err
	}
	b, err := api.svc.UpdateBook(ctx.Request().Context(), b, data)
	if err != nil {
		return errors.Wrap(err, "updating book")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *libraryApi) destroyBook(ctx echo.Context) error {
	b, ok := ctx.Get(contextObjectKey).(library.Book)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book from context")
	}
	if err := api.svc.DeleteBook(ctx.Request().Context(), b); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Issues

func (api *libraryApi) issue(ctx echo.Context) error {
	var data library.NewIssue
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIssue")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.users.GetByID(ctx.Request().Context(), data.BorrowerID); err != nil {
		return errors.Wrap(err, "finding borrower")
	}
	is, err := api.svc.Issue(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "issuing book")
	}
	return ctx.JSON(http.StatusCreated, is)
}

func (api *libraryApi) queryIssues(ctx echo.Context) error {
	filter := new(library.IssueFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to IssueFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		filter.BorrowerID = ctxUsr.ID
	}

	issues, err := api.svc.QueryIssues(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying book issues")
	}
	return ctx.JSON(http.StatusOK, issues)
}

func (api *libraryApi) retrieveIssue(ctx echo.Context) error {
	is, ok := ctx.Get(contextObjectKey).(library.Issue)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book issue from context")
	}
	return ctx.JSON(http.StatusOK, is)
}

func (api *libraryApi) returnIssue(ctx echo.Context) error {
	is, ok := ctx.Get(contextObjectKey).(library.Issue)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book issue from context")
	}
	is, err := api.svc.Return(ctx.Request().Context(), is)
	if err != nil {
		return errors.Wrap(err, "returning book")
	}
	return ctx.JSON(http.StatusOK, is)
}

func (api *libraryApi) markLost(ctx echo.Context) error {
	is, ok := ctx.Get(contextObjectKey).(library.Issue)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book issue from context")
	}
	is, err := api.svc.MarkLost(ctx.Request().Context(), is)
	if err != nil {
		return errors.Wrap(err, "marking book lost")
	}
	return ctx.JSON(http.StatusOK, is)
}

func (api *libraryApi) payFine(ctx echo.Context) error {
	is, ok := ctx.Get(contextObjectKey).(library.Issue)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving book issue from context")
	}
	is, err := api.svc.PayFine(ctx.Request().Context(), is)
	if err != nil {
		return errors.Wrap(err, "paying fine")
	}
	return ctx.JSON(http.StatusOK, is)
}
