package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"finnsync/models"
)

type ExportStore interface {
	FetchForExport(ctx context.Context, kind models.Kind, filter models.ExportFilter) ([]models.ExportRow, error)
	FetchUnlistedForExport(ctx context.Context, kind models.Kind, filter models.ExportFilter) ([]models.ExportRow, error)
	MarkExported(ctx context.Context, kind models.Kind, keys []string) (int64, error)
}

// Target names the sheets a kind is exported to. UnlistedSheet receives
// inactive listings when the filter includes them.
type Target struct {
	Sheet         string
	UnlistedSheet string
}

// CellChange is one proposed write to an existing row.
type CellChange struct {
	Sheet  string
	Row    int
	Col    int
	Column string
	Key    string
	Old    string
	New    string
	Kind   ChangeKind
}

func (c CellChange) Range() string {
	return Cell(c.Sheet, c.Col, c.Row)
}

// ConfirmFunc approves a batch of changes that overwrite non-empty cells.
type ConfirmFunc func(changes []CellChange) bool

func AutoApprove([]CellChange) bool { return true }
func AutoDeny([]CellChange) bool    { return false }

type AppendResult struct {
	Kind     models.Kind
	Appended int
	Exported int64
}

type UpdateResult struct {
	Kind         models.Kind
	Safe         int
	Unsafe       int
	Declined     bool
	CellsUpdated int
}

func (r *UpdateResult) String() string {
	s := fmt.Sprintf("%d safe, %d needing confirmation, %d cells written", r.Safe, r.Unsafe, r.CellsUpdated)
	if r.Declined {
		s += " (overwrites declined)"
	}
	return s
}

type SyncResult struct {
	Append *AppendResult
	Update *UpdateResult
}

// Synchronizer projects stored listings onto spreadsheet rows. It appends
// rows for keys the sheet does not have and patches individual cells of rows
// it does. Rows are never deleted or reordered.
type Synchronizer struct {
	svc     Service
	store   ExportStore
	filter  models.ExportFilter
	targets map[models.Kind]Target
}

func NewSynchronizer(svc Service, store ExportStore, filter models.ExportFilter, targets map[models.Kind]Target) *Synchronizer {
	return &Synchronizer{svc: svc, store: store, filter: filter, targets: targets}
}

type batch struct {
	sheet string
	rows  []models.ExportRow
}

func (s *Synchronizer) batches(ctx context.Context, kind models.Kind) ([]batch, error) {
	if s.svc == nil {
		return nil, ErrNotConfigured
	}
	target, ok := s.targets[kind]
	if !ok || target.Sheet == "" {
		return nil, fmt.Errorf("no sheet configured for %s", kind)
	}

	listed, err := s.store.FetchForExport(ctx, kind, s.filter)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for export: %w", kind, err)
	}
	out := []batch{{sheet: target.Sheet, rows: listed}}

	if s.filter.IncludeUnlisted && target.UnlistedSheet != "" {
		unlisted, err := s.store.FetchUnlistedForExport(ctx, kind, s.filter)
		if err != nil {
			return nil, fmt.Errorf("fetch unlisted %s for export: %w", kind, err)
		}
		out = append(out, batch{sheet: target.UnlistedSheet, rows: unlisted})
	}
	return out, nil
}

// sheetData is a snapshot of one sheet. rows[0] is the header row.
type sheetData struct {
	name   string
	rows   [][]string
	keyCol int
}

func (d *sheetData) header() []string {
	if len(d.rows) == 0 {
		return nil
	}
	return d.rows[0]
}

// keyRows maps each key found in the key column to its 1-based row number.
func (d *sheetData) keyRows() map[string]int {
	out := make(map[string]int, len(d.rows))
	for i := 1; i < len(d.rows); i++ {
		row := d.rows[i]
		if d.keyCol >= len(row) {
			continue
		}
		if key := ParseKeyCell(row[d.keyCol]); key != "" {
			if _, dup := out[key]; !dup {
				out[key] = i + 1
			}
		}
	}
	return out
}

func (s *Synchronizer) load(ctx context.Context, sheet string) (*sheetData, error) {
	values, err := s.svc.GetValues(ctx, QuoteSheet(sheet))
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	d := &sheetData{name: sheet, rows: values}
	for i, h := range d.header() {
		if strings.TrimSpace(h) == models.FieldKey {
			d.keyCol = i
			break
		}
	}
	return d, nil
}

// ensureHeader appends any of want missing from the header row, keeping the
// existing columns where they are.
func (s *Synchronizer) ensureHeader(ctx context.Context, d *sheetData, want []string) error {
	current := d.header()
	have := make(map[string]bool, len(current))
	for _, h := range current {
		have[strings.TrimSpace(h)] = true
	}

	header := append([]string(nil), current...)
	var added []string
	for _, h := range want {
		if !have[h] {
			header = append(header, h)
			added = append(added, h)
		}
	}
	if len(added) == 0 {
		return nil
	}

	if err := s.svc.UpdateValues(ctx, QuoteSheet(d.name)+"!A1", [][]string{header}); err != nil {
		return fmt.Errorf("extend header of %s: %w", d.name, err)
	}
	if len(d.rows) == 0 {
		d.rows = [][]string{header}
	} else {
		d.rows[0] = header
	}
	slog.Info("Extended sheet header", "sheet", d.name, "columns", added)
	return nil
}

func columnsByHeader(cols []Column) map[string]Column {
	out := make(map[string]Column, len(cols))
	for _, c := range cols {
		out[c.Header] = c
	}
	return out
}

// buildRow lays r out in header order. Unknown headers get empty cells.
func buildRow(header []string, cols map[string]Column, r models.ExportRow) []string {
	row := make([]string, len(header))
	for i, h := range header {
		if c, ok := cols[strings.TrimSpace(h)]; ok {
			row[i] = c.Value(r)
		}
	}
	return row
}

// AppendNew appends a row for every exportable listing whose key is not in
// the target sheet yet, then marks those listings exported. Existing rows
// are left alone; only the header row may grow.
func (s *Synchronizer) AppendNew(ctx context.Context, kind models.Kind) (*AppendResult, error) {
	batches, err := s.batches(ctx, kind)
	if err != nil {
		return nil, err
	}
	cols := Columns(kind)
	byHeader := columnsByHeader(cols)
	result := &AppendResult{Kind: kind}

	for _, b := range batches {
		d, err := s.load(ctx, b.sheet)
		if err != nil {
			return result, err
		}
		existing := d.keyRows()

		var fresh []models.ExportRow
		seen := make(map[string]bool)
		for _, r := range b.rows {
			if _, ok := existing[r.Key]; ok || seen[r.Key] {
				continue
			}
			seen[r.Key] = true
			fresh = append(fresh, r)
		}
		if len(fresh) == 0 {
			slog.Info("No new rows", "kind", kind, "sheet", b.sheet)
			continue
		}

		if err := s.ensureHeader(ctx, d, Headers(cols)); err != nil {
			return result, err
		}

		grid := make([][]string, len(fresh))
		keys := make([]string, len(fresh))
		for i, r := range fresh {
			grid[i] = buildRow(d.header(), byHeader, r)
			keys[i] = r.Key
		}

		rng := fmt.Sprintf("%s!A%d", QuoteSheet(b.sheet), len(d.rows)+1)
		n, err := s.svc.AppendValues(ctx, rng, grid)
		if err != nil {
			return result, fmt.Errorf("append to %s: %w", b.sheet, err)
		}
		result.Appended += n

		marked, err := s.store.MarkExported(ctx, kind, keys)
		if err != nil {
			return result, fmt.Errorf("mark exported: %w", err)
		}
		result.Exported += marked
		slog.Info("Appended rows", "kind", kind, "sheet", b.sheet, "rows", n)
	}
	return result, nil
}

// UpdateExisting rewrites cells of rows already in the sheet whose value
// differs from the store. Changes that fill or clear a cell are applied
// directly; overwrites of a non-empty value go through confirm as one batch.
// Everything approved is sent in a single batch write.
func (s *Synchronizer) UpdateExisting(ctx context.Context, kind models.Kind, confirm ConfirmFunc) (*UpdateResult, error) {
	batches, err := s.batches(ctx, kind)
	if err != nil {
		return nil, err
	}
	cols := Columns(kind)
	byHeader := columnsByHeader(cols)
	result := &UpdateResult{Kind: kind}

	var safe, unsafe []CellChange
	for _, b := range batches {
		d, err := s.load(ctx, b.sheet)
		if err != nil {
			return result, err
		}
		if len(d.rows) < 2 {
			continue
		}
		if err := s.ensureHeader(ctx, d, Headers(cols)); err != nil {
			return result, err
		}

		index := d.keyRows()
		header := d.header()
		for _, r := range b.rows {
			rowNum, ok := index[r.Key]
			if !ok {
				continue
			}
			current := d.rows[rowNum-1]
			for i, h := range header {
				if i == d.keyCol {
					continue
				}
				col, ok := byHeader[strings.TrimSpace(h)]
				if !ok {
					continue
				}
				var old string
				if i < len(current) {
					old = current[i]
				}
				value := col.Value(r)
				change := CellChange{Sheet: b.sheet, Row: rowNum, Col: i + 1, Column: col.Header, Key: r.Key, Old: old, New: value}
				switch change.Kind = Classify(old, value); change.Kind {
				case SafeChange:
					safe = append(safe, change)
				case UnsafeChange:
					unsafe = append(unsafe, change)
				}
			}
		}
	}

	result.Safe = len(safe)
	result.Unsafe = len(unsafe)
	approved := safe
	if len(unsafe) > 0 {
		if confirm != nil && confirm(unsafe) {
			approved = append(approved, unsafe...)
		} else {
			result.Declined = true
			slog.Info("Overwrites declined", "kind", kind, "cells", len(unsafe))
		}
	}
	if len(approved) == 0 {
		return result, nil
	}

	data := make([]ValueRange, len(approved))
	for i, c := range approved {
		data[i] = ValueRange{Range: c.Range(), Values: [][]string{{c.New}}}
		slog.Info("Cell update", "range", c.Range(), "key", c.Key, "column", c.Column, "old", c.Old, "new", c.New, "kind", c.Kind.String())
	}
	n, err := s.svc.BatchUpdate(ctx, data)
	if err != nil {
		return result, fmt.Errorf("update cells: %w", err)
	}
	result.CellsUpdated = n
	return result, nil
}

// Sync appends new rows and, when full is set, updates existing ones.
func (s *Synchronizer) Sync(ctx context.Context, kind models.Kind, full bool, confirm ConfirmFunc) (*SyncResult, error) {
	res := &SyncResult{}
	appended, err := s.AppendNew(ctx, kind)
	res.Append = appended
	if err != nil {
		return res, err
	}
	if !full {
		return res, nil
	}
	updated, err := s.UpdateExisting(ctx, kind, confirm)
	res.Update = updated
	return res, err
}
