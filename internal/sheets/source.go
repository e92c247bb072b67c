// Package sheets reads the user directory from a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// valuesRange covers the first sheet of the spreadsheet.
const valuesRange = "A1:Z"

// Source fetches rows from the first sheet of a spreadsheet, found by ID or by name.
type Source struct {
	sheets  *sheets.Service
	drive   *drive.Service
	name    string
	id      string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSource authenticates with a service-account credentials file.
func NewSource(ctx context.Context, credentialsPath, name, id string, timeout time.Duration, logger *zap.Logger) (*Source, error) {
	return NewSourceWithOptions(ctx, name, id, timeout, logger,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope, drive.DriveMetadataReadonlyScope),
	)
}

func NewSourceWithOptions(ctx context.Context, name, id string, timeout time.Duration, logger *zap.Logger, opts ...option.ClientOption) (*Source, error) {
	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Source{
		sheets:  sheetsSvc,
		drive:   driveSvc,
		name:    name,
		id:      id,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Records returns every data row keyed by the header row.
func (s *Source) Records(ctx context.Context) ([]models.Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	id, err := s.spreadsheetID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.sheets.Spreadsheets.Values.Get(id, valuesRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet %s: %w", id, err)
	}

	s.logger.Debug("Fetched spreadsheet values",
		zap.String("spreadsheet_id", id),
		zap.Int("rows", len(resp.Values)))

	return recordsFromValues(resp.Values), nil
}

func (s *Source) spreadsheetID(ctx context.Context) (string, error) {
	if s.id != "" {
		return s.id, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(s.name, "'", `\'`), spreadsheetMimeType)
	list, err := s.drive.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up spreadsheet %q: %w", s.name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found", s.name)
	}

	return list.Files[0].Id, nil
}

func (s *Source) Close() error {
	return nil
}

// recordsFromValues maps each row after the header onto the header names.
// Short rows are padded with empty cells.
func recordsFromValues(values [][]interface{}) []models.Record {
	if len(values) == 0 {
		return nil
	}

	header := make([]string, len(values[0]))
	for i, cell := range values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(cell))
	}

	records := make([]models.Record, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(models.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = fmt.Sprint(row[i])
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}
