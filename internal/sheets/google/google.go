package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"bms/internal/log"
	ports "bms/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// ErrMissingCredentials is returned when neither inline nor file-based
// service account credentials are configured.
var ErrMissingCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")

// Config selects the spreadsheet range and the service account to read it with.
type Config struct {
	SpreadsheetID   string
	Range           string // A1 notation, e.g. "예산!A1:T200"; a bare sheet name reads the whole sheet
	CredentialsJSON string
	CredentialsFile string
}

// Client reads the budget grid through the Sheets v4 API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
	logger        *log.Logger
}

var _ ports.GridReader = (*Client)(nil)

// New creates a read-only Sheets client using service account credentials.
// Extra options are appended after the credentials, which lets tests point
// the client at a local endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		readRange:     strings.TrimSpace(cfg.Range),
		logger:        logger,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger, extra ...goption.ClientOption) (*gsheet.Service, error) {
	opts := make([]goption.ClientOption, 0, len(extra)+2)
	if len(extra) == 0 {
		credentialsJSON, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(credentialsJSON),
			"scope", gsheet.SpreadsheetsReadonlyScope)
		opts = append(opts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	}
	opts = append(opts, extra...)

	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// ReadGrid returns the configured range with formatted values, every row
// padded to the width of the widest row.
func (c *Client) ReadGrid(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.readRange, err)
	}

	grid := ports.PadRows(resp.Values)
	c.logger.InfoContext(ctx, "Sheet grid loaded",
		log.FieldOperation, log.OpRead,
		"range", c.readRange,
		"rows", len(grid))
	return grid, nil
}
