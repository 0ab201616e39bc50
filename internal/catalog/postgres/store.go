// Package postgres implements catalog.Store directly against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yachtvault/yachtvault/internal/catalog"
)

const yachtColumns = `id, name, builder, owner, former_owner, flag, year_built, refit_year,
	length_m, beam_m, volume_gt, cruising_speed_kn, max_speed_kn, naval_architect,
	exterior_designer, interior_designer, sale_info, yacht_picture, yacht_pictures,
	interior_pictures, detail_url, price, annual_running_cost`

// Config names the relations read by the store.
type Config struct {
	YachtsTable string
	DetailTable string
}

// Store implements catalog.Store backed by PostgreSQL.
type Store struct {
	db  *sqlx.DB
	cfg Config
}

var _ catalog.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB, cfg Config) *Store {
	if cfg.YachtsTable == "" {
		cfg.YachtsTable = "yachts"
	}
	if cfg.DetailTable == "" {
		cfg.DetailTable = "yachts_enhance_data"
	}
	return &Store{db: db, cfg: cfg}
}

// Open connects to dsn with the lib/pq driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type yachtRow struct {
	ID                string         `db:"id"`
	Name              *string        `db:"name"`
	Builder           *string        `db:"builder"`
	Owner             *string        `db:"owner"`
	FormerOwner       *string        `db:"former_owner"`
	Flag              *string        `db:"flag"`
	YearBuilt         *int           `db:"year_built"`
	RefitYear         *string        `db:"refit_year"`
	LengthM           *float64       `db:"length_m"`
	BeamM             *float64       `db:"beam_m"`
	VolumeGT          *float64       `db:"volume_gt"`
	CruisingSpeedKn   *float64       `db:"cruising_speed_kn"`
	MaxSpeedKn        *float64       `db:"max_speed_kn"`
	NavalArchitect    *string        `db:"naval_architect"`
	ExteriorDesigner  *string        `db:"exterior_designer"`
	InteriorDesigner  *string        `db:"interior_designer"`
	SaleInfo          *string        `db:"sale_info"`
	YachtPicture      *string        `db:"yacht_picture"`
	YachtPictures     pq.StringArray `db:"yacht_pictures"`
	InteriorPictures  pq.StringArray `db:"interior_pictures"`
	DetailURL         *string        `db:"detail_url"`
	Price             *float64       `db:"price"`
	AnnualRunningCost *float64       `db:"annual_running_cost"`
}

func (r yachtRow) toYacht() catalog.Yacht {
	return catalog.Yacht{
		ID:                r.ID,
		Name:              r.Name,
		Builder:           r.Builder,
		Owner:             r.Owner,
		FormerOwner:       r.FormerOwner,
		Flag:              r.Flag,
		YearBuilt:         r.YearBuilt,
		RefitYear:         r.RefitYear,
		LengthM:           r.LengthM,
		BeamM:             r.BeamM,
		VolumeGT:          r.VolumeGT,
		CruisingSpeedKn:   r.CruisingSpeedKn,
		MaxSpeedKn:        r.MaxSpeedKn,
		NavalArchitect:    r.NavalArchitect,
		ExteriorDesigner:  r.ExteriorDesigner,
		InteriorDesigner:  r.InteriorDesigner,
		SaleInfo:          r.SaleInfo,
		YachtPicture:      r.YachtPicture,
		YachtPictures:     []string(r.YachtPictures),
		InteriorPictures:  []string(r.InteriorPictures),
		DetailURL:         r.DetailURL,
		Price:             r.Price,
		AnnualRunningCost: r.AnnualRunningCost,
	}
}

func toYachts(rows []yachtRow) []catalog.Yacht {
	out := make([]catalog.Yacht, len(rows))
	for i, r := range rows {
		out[i] = r.toYacht()
	}
	return out
}

// whereClause accumulates conditions and positional arguments.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// ListYachts counts matching rows, then reads one page.
func (s *Store) ListYachts(ctx context.Context, q catalog.ListQuery) (catalog.ListResult, error) {
	var where whereClause
	if q.Search != "" {
		where.add("(name ILIKE ? OR builder ILIKE ?)", catalog.ContainsPattern(q.Search))
	}
	if q.MinLength != nil {
		where.add("length_m >= ?", *q.MinLength)
	}
	if q.MaxLength != nil {
		where.add("length_m <= ?", *q.MaxLength)
	}
	if q.Builder != "" {
		where.add("builder ILIKE ?", catalog.ContainsPattern(q.Builder))
	}

	var total int
	countSQL := "SELECT count(*) FROM " + pq.QuoteIdentifier(s.cfg.YachtsTable) + where.String()
	if err := s.db.GetContext(ctx, &total, countSQL, where.args...); err != nil {
		return catalog.ListResult{}, fmt.Errorf("count yachts: %w", err)
	}

	sort := q.Sort()
	dir := "DESC"
	if sort.Ascending {
		dir = "ASC"
	}
	args := append(append([]any{}, where.args...), q.Limit, q.Offset())
	listSQL := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s NULLS LAST, id LIMIT $%d OFFSET $%d",
		yachtColumns, pq.QuoteIdentifier(s.cfg.YachtsTable), where.String(),
		pq.QuoteIdentifier(sort.Field), dir, len(args)-1, len(args))

	var rows []yachtRow
	if err := s.db.SelectContext(ctx, &rows, listSQL, args...); err != nil {
		return catalog.ListResult{}, fmt.Errorf("list yachts: %w", err)
	}
	return catalog.ListResult{Yachts: toYachts(rows), Total: total}, nil
}

// GetYacht reads one record from the detail relation.
func (s *Store) GetYacht(ctx context.Context, id string) (catalog.Yacht, error) {
	var row yachtRow
	query := "SELECT " + yachtColumns + " FROM " + pq.QuoteIdentifier(s.cfg.DetailTable) + " WHERE id = $1"
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Yacht{}, catalog.ErrNotFound
		}
		return catalog.Yacht{}, fmt.Errorf("get yacht %s: %w", id, err)
	}
	return row.toYacht(), nil
}

// DistinctBuilders calls get_distinct_builders().
func (s *Store) DistinctBuilders(ctx context.Context) ([]string, error) {
	var builders []string
	if err := s.db.SelectContext(ctx, &builders, "SELECT builder FROM get_distinct_builders()"); err != nil {
		return nil, fmt.Errorf("distinct builders: %w", err)
	}
	if builders == nil {
		builders = []string{}
	}
	return builders, nil
}

// QuizPool samples quiz eligible yachts in random order.
func (s *Store) QuizPool(ctx context.Context, q catalog.PoolQuery) ([]catalog.Yacht, error) {
	var where whereClause
	where.conds = append(where.conds,
		"yacht_pictures IS NOT NULL",
		"cardinality(yacht_pictures) > 0",
		"name IS NOT NULL",
		"builder IS NOT NULL",
	)
	if q.MinLength != nil {
		where.add("length_m >= ?", *q.MinLength)
	}
	if q.MaxLength != nil {
		where.add("length_m <= ?", *q.MaxLength)
	}
	args := append(where.args, q.EffectiveLimit())

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY random() LIMIT $%d",
		yachtColumns, pq.QuoteIdentifier(s.cfg.DetailTable), where.String(), len(args))

	var rows []yachtRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("quiz pool: %w", err)
	}
	return toYachts(rows), nil
}

