package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgPatientStore keeps enrolled patients in the patients table, beside the
// appointments that reference them.
type PgPatientStore struct {
	db DBTX
}

func NewPgPatientStore(db DBTX) *PgPatientStore {
	return &PgPatientStore{db: db}
}

const patientColumns = `id, first_name, last_name, date_of_birth, email, phone, created_at, updated_at`

func scanPatient(row pgx.Row) (Patient, bool, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.DateOfBirth,
		&p.Email,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Patient{}, false, nil
		}
		return Patient{}, false, err
	}
	return p, true, nil
}

func (s *PgPatientStore) SavePatient(ctx context.Context, p Patient) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			date_of_birth = EXCLUDED.date_of_birth,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Email, p.Phone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return nil
}

func (s *PgPatientStore) PatientByID(ctx context.Context, id string) (Patient, bool, error) {
	p, ok, err := scanPatient(s.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id))
	if err != nil {
		return Patient{}, false, fmt.Errorf("get patient: %w", err)
	}
	return p, ok, nil
}

func (s *PgPatientStore) FindPatient(ctx context.Context, given, family, dob string) (Patient, bool, error) {
	p, ok, err := scanPatient(s.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE lower(first_name) = lower($1)
		  AND lower(last_name) = lower($2)
		  AND date_of_birth = $3
		ORDER BY created_at, id
		LIMIT 1
	`, given, family, dob))
	if err != nil {
		return Patient{}, false, fmt.Errorf("find patient: %w", err)
	}
	return p, ok, nil
}
