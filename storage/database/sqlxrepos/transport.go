package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/transport"
)

const (
	routeColumns        = "id, name, vehicle_number, driver_name, total_seats, occupied_seats, flat_fee, created_at, updated_at"
	subscriptionColumns = "id, route_id, student_id, stop_name, status, fee_total, fee_paid, due_at, paid_at, " +
		"started_at, ended_at, version"
)

var (
	routeOrdering = map[string]string{
		"name":           "name",
		"total_seats":    "total_seats",
		"occupied_seats": "occupied_seats",
		"flat_fee":       "flat_fee",
		"created_at":     "created_at",
	}
	subscriptionOrdering = map[string]string{
		"started_at": "started_at",
		"status":     "status",
		"stop_name":  "stop_name",
	}

	routeSeats = counterTable{
		resource: "route",
		table:    "routes",
		total:    "total_seats",
		used:     "occupied_seats",
		notFound: transport.ErrNotFound,
	}
)

type routeRow struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	VehicleNumber string          `db:"vehicle_number"`
	DriverName    string          `db:"driver_name"`
	TotalSeats    int             `db:"total_seats"`
	OccupiedSeats int             `db:"occupied_seats"`
	FlatFee       decimal.Decimal `db:"flat_fee"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toRouteRow(r transport.Route) routeRow {
	return routeRow{
		ID:            r.ID,
		Name:          r.Name,
		VehicleNumber: r.VehicleNumber,
		DriverName:    r.DriverName,
		TotalSeats:    r.TotalSeats,
		OccupiedSeats: r.OccupiedSeats,
		FlatFee:       r.FlatFee,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r routeRow) route(stops []transport.Stop) transport.Route {
	if stops == nil {
		stops = []transport.Stop{}
	}
	return transport.Route{
		ID:            r.ID,
		Name:          r.Name,
		VehicleNumber: r.VehicleNumber,
		DriverName:    r.DriverName,
		TotalSeats:    r.TotalSeats,
		OccupiedSeats: r.OccupiedSeats,
		FlatFee:       r.FlatFee,
		Stops:         stops,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type stopRow struct {
	RouteID  string          `db:"route_id"`
	Position int             `db:"position"`
	Name     string          `db:"name"`
	Fee      decimal.Decimal `db:"fee"`
}

type subscriptionRow struct {
	ID        string          `db:"id"`
	RouteID   string          `db:"route_id"`
	StudentID string          `db:"student_id"`
	StopName  string          `db:"stop_name"`
	Status    string          `db:"status"`
	FeeTotal  decimal.Decimal `db:"fee_total"`
	FeePaid   decimal.Decimal `db:"fee_paid"`
	DueAt     null.Time       `db:"due_at"`
	PaidAt    null.Time       `db:"paid_at"`
	StartedAt time.Time       `db:"started_at"`
	EndedAt   null.Time       `db:"ended_at"`
	Version   int             `db:"version"`
}

func toSubscriptionRow(s transport.Subscription) subscriptionRow {
	return subscriptionRow{
		ID:        s.ID,
		RouteID:   s.RouteID,
		StudentID: s.StudentID,
		StopName:  s.StopName,
		Status:    string(s.Status),
		FeeTotal:  s.FeeTotal,
		FeePaid:   s.FeePaid,
		DueAt:     nullTime(s.DueAt),
		PaidAt:    nullTime(s.PaidAt),
		StartedAt: s.StartedAt.UTC(),
		EndedAt:   nullTime(s.EndedAt),
		Version:   s.Version,
	}
}

func (r subscriptionRow) subscription() transport.Subscription {
	return transport.Subscription{
		ID:        r.ID,
		RouteID:   r.RouteID,
		StudentID: r.StudentID,
		StopName:  r.StopName,
		Status:    capacity.State(r.Status),
		FeeTotal:  r.FeeTotal,
		FeePaid:   r.FeePaid,
		DueAt:     timePtr(r.DueAt),
		PaidAt:    timePtr(r.PaidAt),
		StartedAt: r.StartedAt.UTC(),
		EndedAt:   timePtr(r.EndedAt),
		Version:   r.Version,
	}
}

type transportRepository struct {
	baseRepo
}

var _ transport.Repository = (*transportRepository)(nil) // interface compliance check

func NewTransportRepository(exec core.DBExecutor) *transportRepository {
	return &transportRepository{baseRepo{exec: exec}}
}

// Routes

// CreateRoute inserts the route and its stops. exec should be a transaction.
func (repo transportRepository) CreateRoute(ctx context.Context, r transport.Route, exec ...core.DBExecutor) (transport.Route, error) {
	r.ID = newID()
	r.OccupiedSeats = 0
	row := toRouteRow(r)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO routes (`+routeColumns+`)
		VALUES (:id, :name, :vehicle_number, :driver_name, :total_seats, :occupied_seats, :flat_fee, :created_at, :updated_at)`, row)
	if err != nil {
		return transport.Route{}, trapErr(err, transport.ErrNotFound, "inserting route")
	}
	if err = repo.saveStops(ctx, r.ID, r.Stops, exec); err != nil {
		return transport.Route{}, err
	}
	return row.route(r.Stops), nil
}

// saveStops replaces the stops of a route, keeping their order.
func (repo transportRepository) saveStops(ctx context.Context, routeID string, stops []transport.Stop, exec []core.DBExecutor) error {
	if _, err := repo.run(ctx, exec, "DELETE FROM route_stops WHERE route_id = ?", routeID); err != nil {
		return errors.Wrap(err, "clearing stops")
	}
	for i, s := range stops {
		_, err := repo.namedExec(ctx, exec, `
			INSERT INTO route_stops (route_id, position, name, fee) VALUES (:route_id, :position, :name, :fee)`,
			stopRow{RouteID: routeID, Position: i, Name: s.Name, Fee: s.Fee})
		if err != nil {
			return errors.Wrapf(err, "inserting stop %q", s.Name)
		}
	}
	return nil
}

// loadStops returns the ordered stops of the given routes, by route id.
func (repo transportRepository) loadStops(ctx context.Context, routeIDs []string, exec []core.DBExecutor) (map[string][]transport.Stop, error) {
	stops := make(map[string][]transport.Stop, len(routeIDs))
	if len(routeIDs) == 0 {
		return stops, nil
	}
	var rows []stopRow
	err := repo.selectIn(ctx, exec, &rows,
		"SELECT route_id, position, name, fee FROM route_stops WHERE route_id IN (?) ORDER BY route_id, position", routeIDs)
	if err != nil {
		return nil, errors.Wrap(err, "loading stops")
	}
	for _, r := range rows {
		stops[r.RouteID] = append(stops[r.RouteID], transport.Stop{Name: r.Name, Fee: r.Fee})
	}
	return stops, nil
}

func (repo transportRepository) QueryRoutes(ctx context.Context, filter *transport.RouteFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]transport.Route, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(LOWER(name) LIKE ? OR LOWER(vehicle_number) LIKE ? OR LOWER(driver_name) LIKE ?)", val, val, val)
		}
		if filter.AvailableOnly {
			where.add("occupied_seats < total_seats")
		}
	}

	var rows []routeRow
	q := "SELECT " + routeColumns + " FROM routes" + where.String() + orderBy(ordering, routeOrdering, "name ASC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying routes")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	stops, err := repo.loadStops(ctx, ids, exec)
	if err != nil {
		return nil, err
	}
	routes := make([]transport.Route, 0, len(rows))
	for _, r := range rows {
		routes = append(routes, r.route(stops[r.ID]))
	}
	return routes, nil
}

func (repo transportRepository) GetRoute(ctx context.Context, id string, exec ...core.DBExecutor) (transport.Route, error) {
	if !validID(id) {
		return transport.Route{}, transport.ErrNotFound
	}
	var row routeRow
	if err := repo.get(ctx, exec, &row, "SELECT "+routeColumns+" FROM routes WHERE id = ?", id); err != nil {
		return transport.Route{}, trapErr(err, transport.ErrNotFound, "finding route")
	}
	stops, err := repo.loadStops(ctx, []string{id}, exec)
	if err != nil {
		return transport.Route{}, err
	}
	return row.route(stops[id]), nil
}

// UpdateRoute saves the route and replaces its stops. exec should be a transaction.
func (repo transportRepository) UpdateRoute(ctx context.Context, r transport.Route, exec ...core.DBExecutor) (transport.Route, error) {
	row := toRouteRow(r)
	n, err := repo.namedExec(ctx, exec, `
		UPDATE routes SET
			name = :name, vehicle_number = :vehicle_number, driver_name = :driver_name, flat_fee = :flat_fee,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return transport.Route{}, trapErr(err, transport.ErrNotFound, "updating route")
	}
	if n == 0 {
		return transport.Route{}, transport.ErrNotFound
	}
	if err = repo.saveStops(ctx, r.ID, r.Stops, exec); err != nil {
		return transport.Route{}, err
	}
	return row.route(r.Stops), nil
}

func (repo transportRepository) ResizeRoute(ctx context.Context, id string, totalSeats int, exec ...core.DBExecutor) error {
	return routeSeats.resize(ctx, repo.baseRepo, exec, id, totalSeats)
}

func (repo transportRepository) DeleteRoute(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return transport.ErrNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM routes WHERE id = ? AND occupied_seats = 0", id)
	if err != nil {
		return errors.Wrap(err, "deleting route")
	}
	if n == 0 {
		if _, err = repo.GetRoute(ctx, id, exec...); err != nil {
			return err
		}
		return core.NewInvalidStateError("route", "seats are still taken")
	}
	return nil
}

func (repo transportRepository) AcquireSeat(ctx context.Context, routeID string, exec ...core.DBExecutor) error {
	return routeSeats.acquire(ctx, repo.baseRepo, exec, routeID)
}

func (repo transportRepository) ReleaseSeat(ctx context.Context, routeID string, exec ...core.DBExecutor) error {
	return routeSeats.release(ctx, repo.baseRepo, exec, routeID, false)
}

// Subscriptions

func (repo transportRepository) CreateSubscription(ctx context.Context, s transport.Subscription, exec ...core.DBExecutor) (transport.Subscription, error) {
	s.ID = newID()
	s.Version = 1
	row := toSubscriptionRow(s)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO route_subscriptions (`+subscriptionColumns+`)
		VALUES (:id, :route_id, :student_id, :stop_name, :status, :fee_total, :fee_paid, :due_at, :paid_at,
			:started_at, :ended_at, :version)`, row)
	if err != nil {
		return transport.Subscription{}, trapErr(err, transport.ErrSubscriptionNotFound, "inserting subscription")
	}
	return row.subscription(), nil
}

func (repo transportRepository) QuerySubscriptions(ctx context.Context, filter *transport.SubscriptionFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]transport.Subscription, error) {
	var where whereClause
	if filter != nil {
		if filter.RouteID != "" {
			where.add("route_id = ?", filter.RouteID)
		}
		if filter.StudentID != "" {
			where.add("student_id = ?", filter.StudentID)
		}
		if filter.Status != "" {
			where.add("status = ?", filter.Status)
		}
	}

	var rows []subscriptionRow
	q := "SELECT " + subscriptionColumns + " FROM route_subscriptions" + where.String() + orderBy(ordering, subscriptionOrdering, "started_at DESC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying subscriptions")
	}
	subs := make([]transport.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.subscription())
	}
	return subs, nil
}

func (repo transportRepository) GetSubscription(ctx context.Context, id string, exec ...core.DBExecutor) (transport.Subscription, error) {
	if !validID(id) {
		return transport.Subscription{}, transport.ErrSubscriptionNotFound
	}
	var row subscriptionRow
	if err := repo.get(ctx, exec, &row, "SELECT "+subscriptionColumns+" FROM route_subscriptions WHERE id = ?", id); err != nil {
		return transport.Subscription{}, trapErr(err, transport.ErrSubscriptionNotFound, "finding subscription")
	}
	return row.subscription(), nil
}

func (repo transportRepository) UpdateSubscription(ctx context.Context, s transport.Subscription, fromStatus capacity.State, exec ...core.DBExecutor) (transport.Subscription, error) {
	row := toSubscriptionRow(s)
	n, err := repo.run(ctx, exec, `
		UPDATE route_subscriptions SET
			status = ?, fee_paid = ?, paid_at = ?, ended_at = ?, version = version + 1
		WHERE id = ? AND status = ? AND version = ?`,
		row.Status, row.FeePaid, row.PaidAt, row.EndedAt, row.ID, string(fromStatus), row.Version)
	if err != nil {
		return transport.Subscription{}, trapErr(err, transport.ErrSubscriptionNotFound, "updating subscription")
	}
	if n == 0 {
		cur, err := repo.GetSubscription(ctx, s.ID, exec...)
		if err != nil {
			return transport.Subscription{}, err
		}
		if cur.Status != fromStatus {
			return transport.Subscription{}, core.NewInvalidStateError("route subscription", "already "+string(cur.Status))
		}
		return transport.Subscription{}, core.ErrConflict
	}
	row.Version++
	return row.subscription(), nil
}
