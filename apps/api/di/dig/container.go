package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/paridhisingla/unisync/apps/api/echo"
	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/attendance"
	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/course"
	"github.com/paridhisingla/unisync/core/dashboard"
	"github.com/paridhisingla/unisync/core/fee"
	"github.com/paridhisingla/unisync/core/hostel"
	"github.com/paridhisingla/unisync/core/library"
	"github.com/paridhisingla/unisync/core/notice"
	"github.com/paridhisingla/unisync/core/ticket"
	"github.com/paridhisingla/unisync/core/transport"
	"github.com/paridhisingla/unisync/core/user"
	emailsvc "github.com/paridhisingla/unisync/services/email"
	logsvc "github.com/paridhisingla/unisync/services/logger"
	"github.com/paridhisingla/unisync/storage/database"
	"github.com/paridhisingla/unisync/storage/database/sqlxrepos"
	"github.com/paridhisingla/unisync/storage/redisseq"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*2)
		defer cancel()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, loggerParam.Logger); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

// newSequencer returns the ticket sequence backend: database rows by default, Redis counters when configured.
func newSequencer(conf *core.Config, db *sqlx.DB, logger core.Logger) ticket.Sequencer {
	if conf.SequenceBackend != core.SequenceBackendRedis {
		return sqlxrepos.NewSequenceRepository(db)
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	rdb, err := redisseq.NewClient(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	seq := redisseq.NewSequencer(rdb)
	if err = seedTicketSequence(ctx, seq, db, logger); err != nil {
		logger.Fatal(fmt.Sprintf("seeding ticket sequence: %v", err), err)
	}
	return seq
}

type sequenceSeeder interface {
	Seed(ctx context.Context, name string, floors ...int64) (bool, error)
}

// seedTicketSequence starts a fresh Redis counter past every ticket number already issued.
func seedTicketSequence(ctx context.Context, seq sequenceSeeder, db *sqlx.DB, logger core.Logger) error {
	count, err := sqlxrepos.NewComplaintRepository(db).CountComplaints(ctx)
	if err != nil {
		return err
	}
	current, err := sqlxrepos.NewSequenceRepository(db).CurrentValue(ctx, ticket.SequenceName)
	if err != nil {
		return err
	}
	seeded, err := seq.Seed(ctx, ticket.SequenceName, count, current)
	if err != nil {
		return err
	}
	if seeded {
		logger.Info(fmt.Sprintf("ticket sequence seeded at %d", max(count, current)))
	}
	return nil
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newUserService(conf *core.Config, db *sqlx.DB, mailSvc core.EmailService) user.ServiceInterface {
	return user.NewService(conf, sqlxrepos.NewUserRepository(db), mailSvc)
}

func newComplaintService(db *sqlx.DB, seq ticket.Sequencer, users user.ServiceInterface, mailSvc core.EmailService, logger core.Logger) *complaint.Service {
	return complaint.NewService(sqlxrepos.NewComplaintRepository(db), ticket.NewGenerator(seq), users, mailSvc, logger)
}

func newLibraryService(conf *core.Config, db *sqlx.DB) (*library.Service, error) {
	return library.NewService(db, sqlxrepos.NewLibraryRepository(db), conf)
}

func newHostelService(conf *core.Config, db *sqlx.DB) (*hostel.Service, error) {
	return hostel.NewService(db, sqlxrepos.NewHostelRepository(db), conf)
}

func newTransportService(conf *core.Config, db *sqlx.DB) (*transport.Service, error) {
	return transport.NewService(db, sqlxrepos.NewTransportRepository(db), conf)
}

func newFeeService(conf *core.Config, db *sqlx.DB) (*fee.Service, error) {
	return fee.NewService(db, sqlxrepos.NewFeeRepository(db), conf)
}

func newCourseService(db *sqlx.DB) *course.Service {
	return course.NewService(db, sqlxrepos.NewCourseRepository(db))
}

func newAttendanceService(db *sqlx.DB, courses *course.Service) *attendance.Service {
	return attendance.NewService(db, sqlxrepos.NewAttendanceRepository(db), courses)
}

func newNoticeFeed(conf *core.Config, logger core.Logger) (*echoapi.NoticeFeed, notice.Broadcaster) {
	feed := echoapi.NewNoticeFeed(logger, conf.Server.AllowedOrigins)
	return feed, feed
}

func newNoticeService(db *sqlx.DB, users user.ServiceInterface, mailSvc core.EmailService, feed notice.Broadcaster, logger core.Logger) *notice.Service {
	return notice.NewService(sqlxrepos.NewNoticeRepository(db), users, mailSvc, feed, logger)
}

func newDashboardService(db *sqlx.DB, lib *library.Service) *dashboard.Service {
	return dashboard.NewService(sqlxrepos.NewDashboardRepository(db), lib)
}

// DepsParam gathers the API dependencies.
type DepsParam struct {
	dig.In

	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.ServiceInterface
	ComplaintSvc  *complaint.Service
	LibrarySvc    *library.Service
	HostelSvc     *hostel.Service
	TransportSvc  *transport.Service
	FeeSvc        *fee.Service
	CourseSvc     *course.Service
	AttendanceSvc *attendance.Service
	NoticeSvc     *notice.Service
	DashboardSvc  *dashboard.Service
	Feed          *echoapi.NoticeFeed
}

func newServer(conf *core.Config, logger core.Logger, p DepsParam) *echoapi.Server {
	return echoapi.NewServer(conf, logger, &echoapi.Deps{
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		ComplaintSvc:  p.ComplaintSvc,
		LibrarySvc:    p.LibrarySvc,
		HostelSvc:     p.HostelSvc,
		TransportSvc:  p.TransportSvc,
		FeeSvc:        p.FeeSvc,
		CourseSvc:     p.CourseSvc,
		AttendanceSvc: p.AttendanceSvc,
		NoticeSvc:     p.NoticeSvc,
		DashboardSvc:  p.DashboardSvc,
		Feed:          p.Feed,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newSequencer))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	must(c.Provide(newUserService))
	must(c.Provide(newComplaintService))
	must(c.Provide(newLibraryService))
	must(c.Provide(newHostelService))
	must(c.Provide(newTransportService))
	must(c.Provide(newFeeService))
	must(c.Provide(newCourseService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newNoticeFeed))
	must(c.Provide(newNoticeService))
	must(c.Provide(newDashboardService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
