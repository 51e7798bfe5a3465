package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"FacilityBot/entity"
	"FacilityBot/internal/config"
	"FacilityBot/internal/lib/sl"
)

const timeLayout = "2006-01-02 15:04:05"

// Mirror appends saved service calls to a Google spreadsheet.
type Mirror struct {
	srv           *gsheets.Service
	spreadsheetID string
	sheet         string
	log           *slog.Logger
}

func NewSheetsMirror(ctx context.Context, conf *config.Config, logger *slog.Logger) (*Mirror, error) {
	if !conf.Sheets.Enabled {
		return nil, nil
	}
	data, err := os.ReadFile(conf.Sheets.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	srv, err := gsheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(srv, conf.Sheets.SpreadsheetID, conf.Sheets.SheetName, logger), nil
}

func New(srv *gsheets.Service, spreadsheetID, sheet string, logger *slog.Logger) *Mirror {
	return &Mirror{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		log:           logger.With(sl.Module("sheets")),
	}
}

func (m *Mirror) AppendServiceCall(ctx context.Context, call *entity.ServiceCall) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{Row(call)}}
	_, err := m.srv.Spreadsheets.Values.Append(m.spreadsheetID, m.sheet+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	m.log.Debug("service call mirrored", slog.String("id", call.ID))
	return nil
}

// Row is the spreadsheet layout of a service call.
func Row(call *entity.ServiceCall) []interface{} {
	return []interface{}{
		call.CreatedAt.Local().Format(timeLayout),
		call.ID,
		call.Phone,
		call.CustomerName,
		call.CustomerNumber,
		call.IssueType,
		call.Urgency,
		call.SerialNumber,
		call.Location,
		call.Description,
		call.Status,
	}
}

