package customer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	// registers the "postgres" driver
	_ "github.com/lib/pq"

	"github.com/prompt-general/healthscore/internal/window"
)

// The view is filtered on both dates so a bounded window never pulls the
// whole customer base. Bounds arrive as text and NULL means open.
const selectCustomers = `
SELECT
    client_id,
    COALESCE(nome, ''),
    COALESCE(cnpj::text, ''),
    COALESCE(pipeline, ''),
    COALESCE(status, ''),
    COALESCE(valor, 0),
    COALESCE(parcelas_atrasadas, 0),
    data_adesao::text,
    data_cancelamento::text,
    data_start_onboarding::text,
    data_end_onboarding::text
FROM clientes_atual
WHERE ($1::date IS NULL AND $2::date IS NULL)
   OR (data_adesao::date BETWEEN COALESCE($1::date, '-infinity'::date) AND COALESCE($2::date, 'infinity'::date))
   OR (data_cancelamento::date BETWEEN COALESCE($1::date, '-infinity'::date) AND COALESCE($2::date, 'infinity'::date))
ORDER BY data_adesao DESC NULLS LAST
`

// PostgresRepository reads the clientes_atual view.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens and pings the customer database.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open customer database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("customer database ping failed: %w", err)
	}
	return db, nil
}

func (r *PostgresRepository) Query(ctx context.Context, w window.Window) ([]Record, error) {
	start, end := boundArg(w.Start), boundArg(w.End)

	rows, err := r.db.QueryContext(ctx, selectCustomers, start, end)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var value decimal.Decimal
		var acquisition, churn, onbStart, onbEnd sql.NullString
		if err := rows.Scan(
			&rec.ClientID,
			&rec.Name,
			&rec.Document,
			&rec.Pipeline,
			&rec.Status,
			&value,
			&rec.OverdueInstallments,
			&acquisition,
			&churn,
			&onbStart,
			&onbEnd,
		); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}

		rec.ID = NormalizeDocument(rec.Document)
		rec.Stage = StageOf(rec.Pipeline, rec.Status)
		rec.ContractValue = value
		rec.AcquisitionDate = dateOf(acquisition)
		rec.ChurnDate = dateOf(churn)
		rec.OnboardingStart = timestampOf(onbStart)
		rec.OnboardingEnd = timestampOf(onbEnd)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}

	return records, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func boundArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

// dateOf treats NULL and unparseable text alike.
func dateOf(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, ok := window.ParseDate(s.String)
	if !ok {
		return nil
	}
	return &t
}

// timestampOf is dateOf keeping the clock, for durations.
func timestampOf(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, ok := window.ParseTimestamp(s.String)
	if !ok {
		return nil
	}
	return &t
}
