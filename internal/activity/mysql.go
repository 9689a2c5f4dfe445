package activity

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	// registers the "mysql" driver
	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/errgroup"
)

const (
	selectTenants = `
SELECT id, COALESCE(name, ''), COALESCE(cnpj, ''), COALESCE(slug, '')
FROM tenants
WHERE type = 'normal'`

	selectLogins = `
SELECT
    COALESCE(al.tenant_id, u.tenant_id) AS tenant_id,
    COUNT(CASE WHEN al.created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END),
    DATEDIFF(NOW(), MAX(al.created_at)),
    COUNT(DISTINCT CASE WHEN al.created_at >= CURDATE() - INTERVAL 30 DAY THEN al.subject_id END)
FROM activity_log al
LEFT JOIN users u ON u.id = al.subject_id
WHERE al.event = 'login'
GROUP BY COALESCE(al.tenant_id, u.tenant_id)`

	selectEntries = `
SELECT
    tenant_id,
    COUNT(CASE WHEN created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END),
    DATEDIFF(NOW(), MAX(created_at))
FROM inventory_entries
WHERE deleted_at IS NULL
GROUP BY tenant_id`

	selectOuts = `
SELECT
    tenant_id,
    COUNT(CASE WHEN created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END),
    DATEDIFF(NOW(), MAX(created_at))
FROM inventory_outs
WHERE deleted_at IS NULL
GROUP BY tenant_id`

	selectStock = `
SELECT ie.tenant_id, COUNT(ie.id)
FROM inventory_entries ie
WHERE ie.deleted_at IS NULL
  AND ie.status = 'active'
  AND NOT EXISTS (
      SELECT 1 FROM inventory_outs io
      WHERE io.vehicle_id = ie.vehicle_id AND io.deleted_at IS NULL
  )
GROUP BY ie.tenant_id`

	selectLeads = `
SELECT
    tenant_id,
    COUNT(CASE WHEN created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END),
    DATEDIFF(NOW(), MAX(created_at))
FROM cards
WHERE deleted_at IS NULL
GROUP BY tenant_id`

	selectMessagingAdoption = `
SELECT em.tenant_id
FROM econversa_messages em
JOIN tenants t ON t.id = em.tenant_id
JOIN econversa_instance_configurations eic ON eic.name = t.slug
WHERE eic.status = 'open'
GROUP BY em.tenant_id
HAVING COUNT(CASE WHEN em.created_at >= CURDATE() - INTERVAL 15 DAY THEN 1 END) > 0`

	selectAdsAdoption = `
SELECT tenant_id
FROM integrator_ads
WHERE integrator_id NOT IN (3, 13)
GROUP BY tenant_id
HAVING COUNT(CASE WHEN created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END) > 0`

	selectReportsAdoption = `
SELECT tenant_id
FROM reports
GROUP BY tenant_id
HAVING COUNT(CASE WHEN created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END) > 0`

	selectContractsAdoption = `
SELECT tenant_id
FROM contracts
GROUP BY tenant_id
HAVING COUNT(CASE WHEN created_at >= CURDATE() - INTERVAL 30 DAY THEN 1 END) >= 2`

	selectMessagingStatus = `
SELECT t.id, COALESCE(eic.status, '')
FROM tenants t
JOIN econversa_instance_configurations eic ON eic.name = t.slug`

	selectIntegrations = `
SELECT tenant_id, integrator_id
FROM integrator_configurations
WHERE deleted_at IS NULL
  AND integrator_id NOT IN (3, 13)`
)

// Integrator names by id. Ids 3 and 13 are internal and never reported.
var integrators = map[int]string{
	1:  "WEBMOTORS",
	2:  "KBB",
	4:  "FIPE",
	5:  "OLX",
	6:  "EMAIL",
	7:  "ControlStock",
	8:  "MOBIAUTO",
	9:  "AUTOAVALIAR",
	11: "JSONFEED",
	12: "MERCADO_LIVRE",
	14: "META",
	15: "Autoline",
	16: "CREDERE",
}

// MySQLRepository builds activity profiles from the operational database.
// Every event family is read by its own query and the queries run
// concurrently.
type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// OpenMySQL accepts either a driver DSN or a mysql:// / mariadb:// URL.
func OpenMySQL(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	driverDSN, err := ToMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", driverDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("activity database ping failed: %w", err)
	}
	return db, nil
}

// ToMySQLDSN converts mariadb:// and mysql:// URLs to the driver format.
// Anything else is returned unchanged.
func ToMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mariadb://") && !strings.HasPrefix(dsn, "mysql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	db := strings.TrimPrefix(u.Path, "/")
	if user == "" || u.Host == "" || db == "" {
		return "", fmt.Errorf("incomplete dsn: user, host and database are required")
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&interpolateParams=true", user, pass, u.Host, db), nil
}

type loginStats struct {
	family Family
	users  int
}

func (r *MySQLRepository) Query(ctx context.Context) ([]Profile, error) {
	var (
		tenants   []Profile
		logins    map[int64]loginStats
		entries   map[int64]Family
		outs      map[int64]Family
		leads     map[int64]Family
		stock     map[int64]int
		messaging map[int64]bool
		ads       map[int64]bool
		reports   map[int64]bool
		contracts map[int64]bool
		statuses  map[int64]string
		connected map[int64][]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tenants, err = r.tenants(gctx)
		return
	})
	g.Go(func() (err error) {
		logins, err = r.logins(gctx)
		return
	})
	g.Go(func() (err error) {
		entries, err = r.family(gctx, "inventory entries", selectEntries)
		return
	})
	g.Go(func() (err error) {
		outs, err = r.family(gctx, "inventory outs", selectOuts)
		return
	})
	g.Go(func() (err error) {
		leads, err = r.family(gctx, "leads", selectLeads)
		return
	})
	g.Go(func() (err error) {
		stock, err = r.stock(gctx)
		return
	})
	g.Go(func() (err error) {
		messaging, err = r.tenantSet(gctx, "messaging adoption", selectMessagingAdoption)
		return
	})
	g.Go(func() (err error) {
		ads, err = r.tenantSet(gctx, "ads adoption", selectAdsAdoption)
		return
	})
	g.Go(func() (err error) {
		reports, err = r.tenantSet(gctx, "reports adoption", selectReportsAdoption)
		return
	})
	g.Go(func() (err error) {
		contracts, err = r.tenantSet(gctx, "contracts adoption", selectContractsAdoption)
		return
	})
	g.Go(func() (err error) {
		statuses, err = r.messagingStatus(gctx)
		return
	})
	g.Go(func() (err error) {
		connected, err = r.integrations(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range tenants {
		p := &tenants[i]
		id := p.TenantID

		if l, ok := logins[id]; ok {
			p.Logins, p.ActiveUsers = l.family, l.users
		}
		if f, ok := entries[id]; ok {
			p.InventoryIn = f
		}
		if f, ok := outs[id]; ok {
			p.InventoryOut = f
		}
		if f, ok := leads[id]; ok {
			p.Leads = f
		}
		p.StockSize = stock[id]
		p.MessagingActive = messaging[id]
		p.AdsActive = ads[id]
		p.ReportsActive = reports[id]
		p.ContractsActive = contracts[id]
		if s, ok := statuses[id]; ok && s != "" {
			p.MessagingStatus = s
		}
		if names, ok := connected[id]; ok {
			p.Integrations = names
		}
	}

	return tenants, nil
}

func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *MySQLRepository) each(ctx context.Context, what, query string, scan func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", what, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", what, err)
	}
	return nil
}

func (r *MySQLRepository) tenants(ctx context.Context) ([]Profile, error) {
	var out []Profile
	err := r.each(ctx, "tenants", selectTenants, func(rows *sql.Rows) error {
		var id int64
		var name, doc, slug string
		if err := rows.Scan(&id, &name, &doc, &slug); err != nil {
			return err
		}
		p := Empty(doc)
		p.TenantID, p.Name, p.Slug = id, name, slug
		out = append(out, p)
		return nil
	})
	return out, err
}

func (r *MySQLRepository) logins(ctx context.Context) (map[int64]loginStats, error) {
	out := make(map[int64]loginStats)
	err := r.each(ctx, "logins", selectLogins, func(rows *sql.Rows) error {
		var id sql.NullInt64
		var count, users int
		var days sql.NullInt64
		if err := rows.Scan(&id, &count, &days, &users); err != nil {
			return err
		}
		if !id.Valid {
			return nil
		}
		out[id.Int64] = loginStats{family: familyOf(count, days), users: users}
		return nil
	})
	return out, err
}

func (r *MySQLRepository) family(ctx context.Context, what, query string) (map[int64]Family, error) {
	out := make(map[int64]Family)
	err := r.each(ctx, what, query, func(rows *sql.Rows) error {
		var id int64
		var count int
		var days sql.NullInt64
		if err := rows.Scan(&id, &count, &days); err != nil {
			return err
		}
		out[id] = familyOf(count, days)
		return nil
	})
	return out, err
}

func (r *MySQLRepository) stock(ctx context.Context) (map[int64]int, error) {
	out := make(map[int64]int)
	err := r.each(ctx, "stock", selectStock, func(rows *sql.Rows) error {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		out[id] = n
		return nil
	})
	return out, err
}

func (r *MySQLRepository) tenantSet(ctx context.Context, what, query string) (map[int64]bool, error) {
	out := make(map[int64]bool)
	err := r.each(ctx, what, query, func(rows *sql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out[id] = true
		return nil
	})
	return out, err
}

func (r *MySQLRepository) messagingStatus(ctx context.Context) (map[int64]string, error) {
	out := make(map[int64]string)
	err := r.each(ctx, "messaging status", selectMessagingStatus, func(rows *sql.Rows) error {
		var id int64
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return err
		}
		out[id] = status
		return nil
	})
	return out, err
}

func (r *MySQLRepository) integrations(ctx context.Context) (map[int64][]string, error) {
	ids := make(map[int64][]int)
	err := r.each(ctx, "integrations", selectIntegrations, func(rows *sql.Rows) error {
		var tenant int64
		var integrator int
		if err := rows.Scan(&tenant, &integrator); err != nil {
			return err
		}
		ids[tenant] = append(ids[tenant], integrator)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[int64][]string, len(ids))
	for tenant, list := range ids {
		sort.Ints(list)
		names := make([]string, 0, len(list))
		for _, id := range list {
			if name, ok := integrators[id]; ok {
				names = append(names, name)
			}
		}
		out[tenant] = names
	}
	return out, nil
}

func familyOf(count int, days sql.NullInt64) Family {
	f := Family{CountLast30Days: count, DaysSinceLast: Never}
	if days.Valid && days.Int64 >= 0 {
		f.DaysSinceLast = int(days.Int64)
	}
	return f
}
