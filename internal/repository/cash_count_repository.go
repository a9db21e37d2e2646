package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/bus-pos/internal/model"
)

// CashCountRepo provides data access to the cash_count_breakdowns table.
type CashCountRepo struct {
	db DBTX
}

// NewCashCountRepo returns a new CashCountRepo bound to the given database or transaction.
func NewCashCountRepo(db DBTX) *CashCountRepo { return &CashCountRepo{db: db} }

// CreateMany inserts all breakdown lines in a single statement.  Passing
// an empty slice has no effect and returns nil.
func (r *CashCountRepo) CreateMany(ctx context.Context, rows []model.CashCountBreakdown) error {
	if len(rows) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO cash_count_breakdowns (session_id, denomination, `count`, `type`) VALUES ")
	args := make([]any, 0, len(rows)*4)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, row.SessionID, row.Denomination, row.Count, string(row.Type))
	}
	_, err := r.db.ExecContext(ctx, b.String(), args...)
	return err
}

// ListBySession returns every breakdown line of a session, initial lines
// first and the largest denominations first within each type.
func (r *CashCountRepo) ListBySession(ctx context.Context, sessionID string) ([]model.CashCountBreakdown, error) {
	const q = "SELECT id, session_id, denomination, `count`, `type` FROM cash_count_breakdowns " +
		"WHERE session_id = ? ORDER BY `type` = 'closing', denomination DESC"
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CashCountBreakdown
	for rows.Next() {
		var c model.CashCountBreakdown
		var typ string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Denomination, &c.Count, &typ); err != nil {
			return nil, err
		}
		c.Type = model.BreakdownType(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
