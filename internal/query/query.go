// Package query searches stored orders by free text and structured filters.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"

	"plansync/internal/config"
	"plansync/internal/locale"
	"plansync/internal/logging"
	"plansync/internal/record"
	"plansync/internal/services"
	"plansync/internal/store"
)

// ftsSubselect restricts orders to index hits inside the same statement so
// ordering and limits apply to the whole match set.
const ftsSubselect = "id IN (SELECT rowid FROM orders_fts WHERE orders_fts MATCH ?)"

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*`)

// likeColumns are scanned when the full-text path yields nothing usable.
var likeColumns = []string{"short_name", "plate", "person", "phone", "email"}

// Filter narrows a search. Empty fields do not filter. Dates accept ISO or
// the planner's local forms and compare as ISO strings.
type Filter struct {
	Text         string
	Plate        string
	Person       string
	Phone        string
	Email        string
	Status       string
	Damage       string
	Station      *int64 `validate:"omitempty,gte=0"`
	MissingParts bool
	After        string `validate:"omitempty,localdate"`
	Before       string `validate:"omitempty,localdate"`
	FinishAfter  string `validate:"omitempty,localdate"`
	FinishBefore string `validate:"omitempty,localdate"`
	Limit        int    `validate:"gte=0"`
}

// Store is the subset of the persistence layer the engine reads.
type Store interface {
	QueryOrders(ctx context.Context, query string, args ...any) ([]record.Order, error)
	MatchFullText(ctx context.Context, expr string, limit int) ([]int64, error)
}

// Engine runs searches against a Store with server-side row caps.
type Engine struct {
	store        Store
	defaultLimit int
	maxLimit     int
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewEngine builds an engine with the configured limits.
func NewEngine(st Store, limits config.Query, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	v := validator.New()
	if err := registerValidations(v); err != nil {
		return nil, fmt.Errorf("register filter validations: %w", err)
	}
	return &Engine{
		store:        st,
		defaultLimit: limits.DefaultLimit,
		maxLimit:     limits.MaxLimit,
		validate:     v,
		logger:       logging.NewComponentLogger(logger, "query"),
	}, nil
}

func registerValidations(v *validator.Validate) error {
	return v.RegisterValidation("localdate", func(fl validator.FieldLevel) bool {
		date, _ := locale.ParseDate(fl.Field().String())
		return date != ""
	})
}

// Tokens splits free text into literal alphanumeric tokens, keeping inner
// hyphens.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// MatchExpression quotes each token and joins them conjunctively so no user
// input is read as full-text syntax. It returns "" for no tokens.
func MatchExpression(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " AND ")
}

// Search returns the orders matching f, most recent shop date first.
func (e *Engine) Search(ctx context.Context, f Filter) ([]record.Order, error) {
	if err := e.validate.Struct(f); err != nil {
		return nil, services.Wrap(services.ErrValidation, "query", "validate filter", "", err)
	}
	query, args, err := e.build(ctx, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	e.logger.Debug("running order query", logging.String("sql", query), logging.Int("args", len(args)))
	return e.store.QueryOrders(ctx, query, args...)
}

func (e *Engine) build(ctx context.Context, f Filter) sq.SelectBuilder {
	b := sq.Select(store.OrderColumns).From("orders")

	likes := []struct{ column, value string }{
		{"plate", f.Plate},
		{"person", f.Person},
		{"phone", f.Phone},
		{"email", f.Email},
		{"project_status", f.Status},
		{"damage", f.Damage},
	}
	for _, l := range likes {
		if v := strings.TrimSpace(l.value); v != "" {
			b = b.Where(sq.Like{l.column: "%" + v + "%"})
		}
	}
	if f.Station != nil {
		b = b.Where(sq.Eq{"station_id": *f.Station})
	}
	if f.MissingParts {
		b = b.Where(sq.Eq{"missing_parts": 1})
	}
	if d := isoDate(f.After); d != "" {
		b = b.Where(sq.GtOrEq{"shop_date": d})
	}
	if d := isoDate(f.Before); d != "" {
		b = b.Where(sq.LtOrEq{"shop_date": d})
	}
	if d := isoDate(f.FinishAfter); d != "" {
		b = b.Where(sq.GtOrEq{"finish_date": d})
	}
	if d := isoDate(f.FinishBefore); d != "" {
		b = b.Where(sq.LtOrEq{"finish_date": d})
	}

	if text := strings.TrimSpace(f.Text); text != "" {
		if expr := e.fullText(ctx, text); expr != "" {
			b = b.Where(sq.Expr(ftsSubselect, expr))
		} else {
			pattern := "%" + text + "%"
			or := sq.Or{}
			for _, col := range likeColumns {
				or = append(or, sq.Like{col: pattern})
			}
			b = b.Where(or)
		}
	}

	return b.OrderBy("shop_date DESC", "id DESC").Limit(uint64(e.limit(f.Limit)))
}

// fullText returns the match expression for text when the index accepts it
// and has at least one hit, or "" so the caller falls back to a substring scan.
func (e *Engine) fullText(ctx context.Context, text string) string {
	expr := MatchExpression(Tokens(text))
	if expr == "" {
		return ""
	}
	hits, err := e.store.MatchFullText(ctx, expr, 1)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ""
		}
		logging.WarnWithContext(e.logger, "full-text match failed; using substring scan", "query_fulltext_failed",
			logging.String("expression", expr),
			logging.Error(err),
			logging.String(logging.FieldImpact, "results come from a slower substring scan"),
		)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}
	return expr
}

func (e *Engine) limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if e.maxLimit > 0 && limit > e.maxLimit {
		limit = e.maxLimit
	}
	if limit <= 0 {
		limit = 200
	}
	return limit
}

func isoDate(text string) string {
	date, _ := locale.ParseDate(text)
	return date
}
