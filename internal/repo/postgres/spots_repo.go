package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spothq/spothub/internal/domain/spot"
)

type SpotsRepo struct {
	pool *pgxpool.Pool
}

// constructor function

func NewSpotsRepo(pool *pgxpool.Pool) *SpotsRepo {
	return &SpotsRepo{
		pool: pool,
	}
}

func (r *SpotsRepo) Create(ctx context.Context, req spot.CreateSpotRequest, createdBy string) (spot.Spot, error) {
	s := spot.NewFromCreateRequest(req, createdBy)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO spots(id, name, description, location, latitude, longitude, created_by, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		s.ID, s.Name, s.Description, s.Location, s.Latitude, s.Longitude, s.CreatedBy, s.CreatedAt, s.UpdatedAt)

	if err != nil {
		return spot.Spot{}, err
	}

	return s, nil
}

func (r *SpotsRepo) List(ctx context.Context, filter spot.ListSpotsFilter) ([]spot.Spot, int, error) {
	baseQuery :=
		`SELECT id,
		name,
		description,
		location,
		latitude,
		longitude,
		created_by,
		created_at,
		updated_at,
		COUNT(*) OVER() AS TOTAL
	FROM spots
	`

	var conds []string
	var args []interface{}

	argsPosition := 1

	// name search, case-insensitive substring match
	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", argsPosition))
		args = append(args, "%"+*filter.Query+"%")
		argsPosition++
	}

	// owner filter

	if filter.CreatedBy != nil {
		conds = append(conds, fmt.Sprintf("created_by = $%d", argsPosition))
		args = append(args, *filter.CreatedBy)
		argsPosition++
	}

	query := baseQuery

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]spot.Spot, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var s spot.Spot
		var t int

		err = rows.Scan(&s.ID, &s.Name, &s.Description, &s.Location, &s.Latitude, &s.Longitude, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &t)

		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, s)
	}

	err = rows.Err()

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *SpotsRepo) GetByID(ctx context.Context, id string) (spot.Spot, error) {
	var s spot.Spot

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, location, latitude, longitude, created_by, created_at, updated_at
		 FROM spots WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Location, &s.Latitude, &s.Longitude, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return spot.Spot{}, spot.ErrNotFound
		}

		return spot.Spot{}, err
	}

	return s, nil
}

// Update never touches created_by; ownership is set once at creation.
func (r *SpotsRepo) Update(ctx context.Context, id string, req spot.UpdateSpotRequest) (spot.Spot, error) {
	var s spot.Spot

	err := r.pool.QueryRow(
		ctx,
		`UPDATE spots
			SET name = $2,
					description = $3,
					location = $4,
					latitude = $5,
					longitude = $6,
					updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, location, latitude, longitude, created_by, created_at, updated_at`,
		id,
		req.Name,
		req.Description,
		req.Location,
		req.Latitude,
		req.Longitude,
	).Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.Location,
		&s.Latitude,
		&s.Longitude,
		&s.CreatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return spot.Spot{}, spot.ErrNotFound
		}
		// if it is any other type of error
		return spot.Spot{}, err
	}

	return s, nil
}

func (r *SpotsRepo) Delete(ctx context.Context, id string) error {
	query, err := r.pool.Exec(ctx, `
		DELETE from spots WHERE id = $1
	`, id)

	if err != nil {

		return err
	}

	// if no rows were deleted as a result return a not found error
	if query.RowsAffected() == 0 {
		return spot.ErrNotFound
	}

	return nil
}
