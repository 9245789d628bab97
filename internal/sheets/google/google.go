package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashstash/internal/core"
	applog "cashstash/internal/log"
	ports "cashstash/internal/sheets"
)

// Config selects the spreadsheet and the service account that writes to it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

var _ ports.LedgerWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test
// endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	if sheetName == "" {
		sheetName = "Ledger"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, logger: logger}
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// EnsureHeader writes the column names into row 1 when it is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:H1", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{ports.Header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Wrote ledger header", applog.FieldSheetsRange, rng)
	return nil
}

// AppendChange appends one row after the last used row of the sheet.
func (c *Client) AppendChange(ctx context.Context, change core.Change) (string, error) {
	if change.UserID == "" {
		return "", core.ErrMissingOwner
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:H", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(change)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}
