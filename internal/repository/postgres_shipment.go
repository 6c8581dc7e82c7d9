package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/service"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres/transaction"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ service.ShipmentStore = (*PostgresShipmentRepository)(nil)

const (
	_shipmentsTable  = "shipments"
	_uniqueViolation = "23505"
)

var _shipmentColumns = []string{
	"id",
	"tracking_number",
	"sender",
	"recipient",
	"origin",
	"destination",
	"image",
	"additional_images",
	"status",
	"created_at",
	"updated_at",
}

type PostgresShipmentRepository struct {
	db        *postgres.Postgres
	txManager transaction.Manager
}

func NewPostgresShipmentRepository(db *postgres.Postgres, txManager transaction.Manager) *PostgresShipmentRepository {
	return &PostgresShipmentRepository{db: db, txManager: txManager}
}

func (r *PostgresShipmentRepository) Create(ctx context.Context, shipment *entity.Shipment) (*entity.Shipment, error) {
	const op = "repository.postgres.Create"

	images := shipment.AdditionalImages
	if images == nil {
		images = []string{}
	}

	query := r.db.Builder.Insert(_shipmentsTable).
		Columns("tracking_number", "sender", "recipient", "origin", "destination", "image", "additional_images", "status").
		Values(
			shipment.TrackingNumber,
			shipment.Sender,
			shipment.Recipient,
			shipment.Origin,
			shipment.Destination,
			shipment.Image,
			images,
			shipment.Status.String(),
		).
		Suffix("RETURNING " + returning())

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	created, err := scanShipment(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == _uniqueViolation {
			return nil, fmt.Errorf("%s: tracking number %s: %w", op, shipment.TrackingNumber, entity.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("%s: query row: %w", op, err)
	}

	return created, nil
}

func (r *PostgresShipmentRepository) GetByID(ctx context.Context, id string) (*entity.Shipment, error) {
	const op = "repository.postgres.GetByID"

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrDataNotFound)
	}

	return r.getOne(ctx, op, r.db.Pool, squirrel.Eq{"id": uid}, false)
}

func (r *PostgresShipmentRepository) GetByTrackingNumber(
	ctx context.Context,
	trackingNumber string,
) (*entity.Shipment, error) {
	const op = "repository.postgres.GetByTrackingNumber"

	return r.getOne(ctx, op, r.db.Pool, squirrel.Eq{"tracking_number": trackingNumber}, false)
}

func (r *PostgresShipmentRepository) ExistsByTrackingNumber(ctx context.Context, trackingNumber string) (bool, error) {
	const op = "repository.postgres.ExistsByTrackingNumber"

	query := r.db.Builder.Select("1").
		From(_shipmentsTable).
		Where(squirrel.Eq{"tracking_number": trackingNumber}).
		Limit(1)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: building query: %w", op, err)
	}

	var one int
	if err = r.db.Pool.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: query row: %w", op, err)
	}
	return true, nil
}

// List returns shipments oldest first.
func (r *PostgresShipmentRepository) List(ctx context.Context) ([]*entity.Shipment, error) {
	const op = "repository.postgres.List"

	query := r.db.Builder.Select(_shipmentColumns...).
		From(_shipmentsTable).
		OrderBy("created_at ASC", "id ASC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	shipments := make([]*entity.Shipment, 0)
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: row scan: %w", op, err)
		}
		shipments = append(shipments, shipment)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return shipments, nil
}

// AppendImage appends in one statement, so concurrent appends serialize on the row lock.
func (r *PostgresShipmentRepository) AppendImage(ctx context.Context, id, url string) (*entity.Shipment, error) {
	const op = "repository.postgres.AppendImage"

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrDataNotFound)
	}

	query := r.db.Builder.Update(_shipmentsTable).
		Set("additional_images", squirrel.Expr("array_append(additional_images, ?)", url)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": uid}).
		Suffix("RETURNING " + returning())

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	updated, err := scanShipment(r.db.Pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: query row: %w", op, err)
	}

	return updated, nil
}

// UpdateStatus locks the row, compares the stored status with from, and
// writes to only when they match.
func (r *PostgresShipmentRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to entity.Status,
) (*entity.Shipment, error) {
	const op = "repository.postgres.UpdateStatus"

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrDataNotFound)
	}

	var updated *entity.Shipment
	err = r.txManager.InTx(ctx, "UpdateShipmentStatus", func(tx postgres.Executor) error {
		current, err := r.getOne(ctx, op, tx, squirrel.Eq{"id": uid}, true)
		if err != nil {
			return err
		}
		if current.Status != from {
			return fmt.Errorf("%s: %s is %q, expected %q: %w", op, id, current.Status, from, entity.ErrStatusConflict)
		}

		query := r.db.Builder.Update(_shipmentsTable).
			Set("status", to.String()).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": uid}).
			Suffix("RETURNING " + returning())

		sql, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("%s: building query: %w", op, err)
		}

		updated, err = scanShipment(tx.QueryRow(ctx, sql, args...))
		if err != nil {
			return fmt.Errorf("%s: query row: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *PostgresShipmentRepository) getOne(
	ctx context.Context,
	op string,
	q postgres.Executor,
	where squirrel.Sqlizer,
	forUpdate bool,
) (*entity.Shipment, error) {
	query := r.db.Builder.Select(_shipmentColumns...).
		From(_shipmentsTable).
		Where(where).
		Limit(1)
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	shipment, err := scanShipment(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: query row: %w", op, err)
	}
	return shipment, nil
}

func returning() string {
	return strings.Join(_shipmentColumns, ", ")
}

func scanShipment(row pgx.Row) (*entity.Shipment, error) {
	var (
		s      entity.Shipment
		id     uuid.UUID
		status string
	)

	err := row.Scan(
		&id,
		&s.TrackingNumber,
		&s.Sender,
		&s.Recipient,
		&s.Origin,
		&s.Destination,
		&s.Image,
		&s.AdditionalImages,
		&status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ID = id.String()
	s.Status = entity.Status(status)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if s.AdditionalImages == nil {
		s.AdditionalImages = []string{}
	}
	return &s, nil
}
