package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bms/internal/core"
	"bms/internal/remote"
)

const dateLayout = "2006-01-02"

var _ remote.Store = (*SQLiteRepository)(nil)

// QueryPage pages budget_records by id. The cursor is the last id of the
// previous page.
func (r *SQLiteRepository) QueryPage(ctx context.Context, pageSize int, cursor string) (remote.Page, error) {
	if pageSize <= 0 {
		pageSize = remote.DefaultPageSize
	}
	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return remote.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, remote.ErrRejected)
		}
		after = n
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_name, category, subcategory, sync_key,
		       total_budget, used_supply, used_tax, used_total, remaining, execution_rate,
		       status, yearly_budget, yearly_executed, last_sync_date
		FROM budget_records WHERE id > ? ORDER BY id LIMIT ?`, after, pageSize+1)
	if err != nil {
		return remote.Page{}, fmt.Errorf("query budget records: %w", err)
	}
	defer rows.Close()

	var (
		page   remote.Page
		lastID int64
	)
	for rows.Next() {
		if len(page.Entries) == pageSize {
			page.HasMore = true
			break
		}
		id, e, err := scanEntry(rows)
		if err != nil {
			return remote.Page{}, err
		}
		lastID = id
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return remote.Page{}, fmt.Errorf("iterate budget records: %w", err)
	}
	if page.HasMore {
		page.NextCursor = strconv.FormatInt(lastID, 10)
	}
	return page, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, props remote.Properties) (string, error) {
	if strings.TrimSpace(props.ItemName) == "" {
		return "", fmt.Errorf("empty item name: %w", remote.ErrRejected)
	}
	yb, ye, err := encodeYearly(props.Record)
	if err != nil {
		return "", err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_records
			(item_name, category, subcategory, sync_key,
			 total_budget, used_supply, used_tax, used_total, remaining, execution_rate,
			 status, yearly_budget, yearly_executed, last_sync_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		props.ItemName, props.Category, props.Subcategory, props.SyncKey,
		props.TotalBudget.String(), props.UsedSupply.String(), props.UsedTax.String(),
		props.UsedTotal.String(), props.Remaining.String(), props.ExecutionRate.String(),
		string(props.Status), yb, ye, formatDate(props.LastSyncDate),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		// a failed single-statement insert is rolled back
		return "", fmt.Errorf("insert budget record: %w: %w", remote.ErrNotApplied, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read inserted id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Update overwrites a record. An empty category keeps the stored one, the
// same way a select property is left alone when omitted.
func (r *SQLiteRepository) Update(ctx context.Context, id string, props remote.Properties) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", id, remote.ErrRejected)
	}
	yb, ye, err := encodeYearly(props.Record)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_records SET
			item_name = ?,
			category = COALESCE(NULLIF(?, ''), category),
			subcategory = ?,
			sync_key = ?,
			total_budget = ?, used_supply = ?, used_tax = ?, used_total = ?,
			remaining = ?, execution_rate = ?,
			status = ?, yearly_budget = ?, yearly_executed = ?,
			last_sync_date = ?, updated_at = ?
		WHERE id = ?`,
		props.ItemName, props.Category, props.Subcategory, props.SyncKey,
		props.TotalBudget.String(), props.UsedSupply.String(), props.UsedTax.String(),
		props.UsedTotal.String(), props.Remaining.String(), props.ExecutionRate.String(),
		string(props.Status), yb, ye, formatDate(props.LastSyncDate),
		time.Now().UTC().Format(timeLayout), rowID)
	if err != nil {
		return fmt.Errorf("update budget record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("budget record %s: %w", id, errors.Join(ErrNotFound, remote.ErrRejected))
	}
	return nil
}

func scanEntry(rows *sql.Rows) (int64, remote.Entry, error) {
	var (
		id                                             int64
		e                                              remote.Entry
		total, supply, tax, used, remaining, rate      string
		status, yearlyBudget, yearlyExecuted, syncDate string
	)
	if err := rows.Scan(&id, &e.ItemName, &e.Category, &e.Subcategory, &e.SyncKey,
		&total, &supply, &tax, &used, &remaining, &rate,
		&status, &yearlyBudget, &yearlyExecuted, &syncDate); err != nil {
		return 0, remote.Entry{}, fmt.Errorf("scan budget record: %w", err)
	}
	e.ID = strconv.FormatInt(id, 10)
	e.TotalBudget = core.ParseAmount(total)
	e.UsedSupply = core.ParseAmount(supply)
	e.UsedTax = core.ParseAmount(tax)
	e.UsedTotal = core.ParseAmount(used)
	e.Remaining = core.ParseAmount(remaining)
	e.ExecutionRate = core.ParseAmount(rate)
	e.Status = core.Status(status)
	if err := json.Unmarshal([]byte(yearlyBudget), &e.YearlyBudget); err != nil {
		return 0, remote.Entry{}, fmt.Errorf("decode yearly budget of %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(yearlyExecuted), &e.YearlyExecuted); err != nil {
		return 0, remote.Entry{}, fmt.Errorf("decode yearly executed of %d: %w", id, err)
	}
	if syncDate != "" {
		e.LastSyncDate, _ = time.Parse(dateLayout, syncDate)
	}
	return id, e, nil
}

func encodeYearly(rec core.Record) (string, string, error) {
	yb, err := json.Marshal(nonNilYears(rec.YearlyBudget))
	if err != nil {
		return "", "", fmt.Errorf("encode yearly budget: %w", err)
	}
	ye, err := json.Marshal(nonNilYears(rec.YearlyExecuted))
	if err != nil {
		return "", "", fmt.Errorf("encode yearly executed: %w", err)
	}
	return string(yb), string(ye), nil
}

func nonNilYears(m map[int]decimal.Decimal) map[int]decimal.Decimal {
	if m == nil {
		return map[int]decimal.Decimal{}
	}
	return m
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
