// Package notion stores budget lines as pages of a Notion database.
package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"bms/internal/core"
	"bms/internal/remote"
)

// Schema names the database properties.
type Schema struct {
	Title         string
	Category      string
	Subcategory   string
	TotalBudget   string
	UsedSupply    string
	UsedTax       string
	UsedTotal     string
	Remaining     string
	ExecutionRate string
	Status        string
	LastSyncDate  string
	// SyncKey is optional; when empty stable keys are not persisted and
	// matching falls back to titles.
	SyncKey string
}

// DefaultSchema matches the budget database.
func DefaultSchema() Schema {
	return Schema{
		Title:         "항목명",
		Category:      "비목",
		Subcategory:   "세목",
		TotalBudget:   "총예산",
		UsedSupply:    "사용금액(공급가)",
		UsedTax:       "사용금액(VAT)",
		UsedTotal:     "사용금액(합계)",
		Remaining:     "잔액",
		ExecutionRate: "집행률",
		Status:        "상태",
		LastSyncDate:  "최종동기화",
	}
}

var yearProperty = regexp.MustCompile(`^(\d{4})년(예산|집행)$`)

func yearBudgetName(y int) string   { return fmt.Sprintf("%d년예산", y) }
func yearExecutedName(y int) string { return fmt.Sprintf("%d년집행", y) }

// Store implements remote.Store on one Notion database.
type Store struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	schema     Schema
}

var _ remote.Store = (*Store)(nil)

// New builds a store. httpClient may be nil.
func New(apiKey, databaseID string, schema Schema, httpClient *http.Client) *Store {
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	return &Store{
		client:     notionapi.NewClient(notionapi.Token(apiKey), opts...),
		databaseID: notionapi.DatabaseID(databaseID),
		schema:     schema,
	}
}

func (s *Store) QueryPage(ctx context.Context, pageSize int, cursor string) (remote.Page, error) {
	resp, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		PageSize:    pageSize,
		StartCursor: notionapi.Cursor(cursor),
	})
	if err != nil {
		return remote.Page{}, fmt.Errorf("query database: %w", classify(err))
	}

	page := remote.Page{
		Entries:    make([]remote.Entry, 0, len(resp.Results)),
		HasMore:    resp.HasMore,
		NextCursor: string(resp.NextCursor),
	}
	for _, p := range resp.Results {
		page.Entries = append(page.Entries, remote.Entry{
			ID:         string(p.ID),
			Properties: s.schema.decode(p.Properties),
		})
	}
	return page, nil
}

func (s *Store) Create(ctx context.Context, props remote.Properties) (string, error) {
	p, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.databaseID,
		},
		Properties: s.schema.encode(props),
	})
	if err != nil {
		return "", fmt.Errorf("create page: %w", classify(err))
	}
	return string(p.ID), nil
}

func (s *Store) Update(ctx context.Context, id string, props remote.Properties) error {
	_, err := s.client.Page.Update(ctx, notionapi.PageID(id), &notionapi.PageUpdateRequest{
		Properties: s.schema.encode(props),
	})
	if err != nil {
		return fmt.Errorf("update page %s: %w", id, classify(err))
	}
	return nil
}

// classify marks client errors other than rate limiting as permanent, and
// rate limiting as not applied.
func classify(err error) error {
	var limited *notionapi.RateLimitedError
	if errors.As(err, &limited) {
		return fmt.Errorf("%w: %w", remote.ErrNotApplied, err)
	}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", remote.ErrNotApplied, err)
	}
	if errors.As(err, &apiErr) &&
		apiErr.Status >= 400 && apiErr.Status < 500 &&
		apiErr.Status != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", remote.ErrRejected, err)
	}
	return err
}

// dayProperty is a date property holding a calendar day. notionapi.Date
// always encodes a full timestamp, which Notion shows with a time.
type dayProperty struct {
	day time.Time
}

func (dayProperty) GetID() string                   { return "" }
func (dayProperty) GetType() notionapi.PropertyType { return notionapi.PropertyTypeDate }

func (p dayProperty) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": notionapi.PropertyTypeDate,
		"date": map[string]any{"start": p.day.Format(time.DateOnly), "end": nil},
	})
}

func (sc Schema) encode(p remote.Properties) notionapi.Properties {
	props := notionapi.Properties{
		sc.Title: &notionapi.TitleProperty{
			Title: richText(p.ItemName),
		},
		sc.Subcategory: &notionapi.RichTextProperty{
			RichText: richText(p.Subcategory),
		},
		sc.TotalBudget:   number(p.TotalBudget),
		sc.UsedSupply:    number(p.UsedSupply),
		sc.UsedTax:       number(p.UsedTax),
		sc.UsedTotal:     number(p.UsedTotal),
		sc.Remaining:     number(p.Remaining),
		sc.ExecutionRate: number(p.ExecutionRate),
		sc.Status: &notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(p.Status)},
		},
	}
	// An empty select is rejected by the API; leave the stored value alone.
	if p.Category != "" {
		props[sc.Category] = &notionapi.SelectProperty{
			Select: notionapi.Option{Name: p.Category},
		}
	}
	if !p.LastSyncDate.IsZero() {
		props[sc.LastSyncDate] = dayProperty{day: p.LastSyncDate}
	}
	for y, v := range p.YearlyBudget {
		props[yearBudgetName(y)] = number(v)
	}
	for y, v := range p.YearlyExecuted {
		props[yearExecutedName(y)] = number(v)
	}
	if sc.SyncKey != "" && p.SyncKey != "" {
		props[sc.SyncKey] = &notionapi.RichTextProperty{RichText: richText(p.SyncKey)}
	}
	return props
}

func (sc Schema) decode(props notionapi.Properties) remote.Properties {
	var out remote.Properties
	out.YearlyBudget = map[int]decimal.Decimal{}
	out.YearlyExecuted = map[int]decimal.Decimal{}

	for name, prop := range props {
		switch name {
		case sc.Title:
			out.ItemName = plainText(prop)
			continue
		case sc.Category:
			out.Category = selectName(prop)
			continue
		case sc.Subcategory:
			out.Subcategory = plainText(prop)
			continue
		case sc.Status:
			out.Status = core.Status(selectName(prop))
			continue
		case sc.LastSyncDate:
			out.LastSyncDate = dateValue(prop)
			continue
		}
		if sc.SyncKey != "" && name == sc.SyncKey {
			out.SyncKey = plainText(prop)
			continue
		}

		v := numberValue(prop)
		switch name {
		case sc.TotalBudget:
			out.TotalBudget = v
		case sc.UsedSupply:
			out.UsedSupply = v
		case sc.UsedTax:
			out.UsedTax = v
		case sc.UsedTotal:
			out.UsedTotal = v
		case sc.Remaining:
			out.Remaining = v
		case sc.ExecutionRate:
			out.ExecutionRate = v
		default:
			m := yearProperty.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			y, _ := strconv.Atoi(m[1])
			if m[2] == "예산" {
				out.YearlyBudget[y] = v
			} else {
				out.YearlyExecuted[y] = v
			}
		}
	}
	return out
}

func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}
}

func number(d decimal.Decimal) *notionapi.NumberProperty {
	return &notionapi.NumberProperty{Number: d.InexactFloat64()}
}

func plainText(p notionapi.Property) string {
	var parts []notionapi.RichText
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		parts = v.Title
	case *notionapi.RichTextProperty:
		parts = v.RichText
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func selectName(p notionapi.Property) string {
	if v, ok := p.(*notionapi.SelectProperty); ok {
		return v.Select.Name
	}
	return ""
}

func numberValue(p notionapi.Property) decimal.Decimal {
	if v, ok := p.(*notionapi.NumberProperty); ok {
		return decimal.NewFromFloat(v.Number)
	}
	return decimal.Zero
}

func dateValue(p notionapi.Property) time.Time {
	v, ok := p.(*notionapi.DateProperty)
	if !ok || v.Date == nil || v.Date.Start == nil {
		return time.Time{}
	}
	return time.Time(*v.Date.Start)
}
