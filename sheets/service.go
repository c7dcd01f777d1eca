package sheets

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

var ErrNotConfigured = errors.New("spreadsheet not configured (set SPREADSHEET_ID)")

// ValueRange is one block of cells addressed by an A1 range.
type ValueRange struct {
	Range  string
	Values [][]string
}

// Service is the grid store the synchronizer writes to. Ranges use A1
// notation. UpdateValues writes raw text; AppendValues and BatchUpdate let
// the spreadsheet interpret values (numbers, formulas) the way a user typing
// them would.
type Service interface {
	GetValues(ctx context.Context, rng string) ([][]string, error)
	UpdateValues(ctx context.Context, rng string, values [][]string) error
	AppendValues(ctx context.Context, rng string, values [][]string) (int, error)
	BatchUpdate(ctx context.Context, data []ValueRange) (int, error)
}

// GoogleService talks to one spreadsheet through the Sheets v4 API.
type GoogleService struct {
	svc           *gsheets.Service
	spreadsheetID string
}

func NewGoogleService(ctx context.Context, spreadsheetID, credentialsFile string) (*GoogleService, error) {
	if spreadsheetID == "" {
		return nil, ErrNotConfigured
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &GoogleService{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *GoogleService) GetValues(ctx context.Context, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (g *GoogleService) UpdateValues(ctx context.Context, rng string, values [][]string) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, &gsheets.ValueRange{Values: toInterfaces(values)}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (g *GoogleService) AppendValues(ctx context.Context, rng string, values [][]string) (int, error) {
	resp, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, &gsheets.ValueRange{Values: toInterfaces(values)}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", rng, err)
	}
	if resp.Updates == nil {
		return len(values), nil
	}
	return int(resp.Updates.UpdatedRows), nil
}

func (g *GoogleService) BatchUpdate(ctx context.Context, data []ValueRange) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	req := &gsheets.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED"}
	for _, d := range data {
		req.Data = append(req.Data, &gsheets.ValueRange{Range: d.Range, Values: toInterfaces(d.Values)})
	}
	resp, err := g.svc.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("batch update: %w", err)
	}
	return int(resp.TotalUpdatedCells), nil
}

func toInterfaces(values [][]string) [][]interface{} {
	out := make([][]interface{}, len(values))
	for i, row := range values {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}
