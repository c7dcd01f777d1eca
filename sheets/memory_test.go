package sheets

import (
	"context"
	"errors"
)

// memoryService is a Service backed by in-memory grids, one per sheet.
type memoryService struct {
	grids     map[string][][]string
	appendErr error
	batchErr  error
	batches   [][]ValueRange
	appends   []string
}

func newMemoryService() *memoryService {
	return &memoryService{grids: make(map[string][][]string)}
}

func (m *memoryService) put(sheet string, rows ...[]string) {
	m.grids[sheet] = append(m.grids[sheet], rows...)
}

func (m *memoryService) snapshot(sheet string) [][]string {
	grid := m.grids[sheet]
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func (m *memoryService) GetValues(_ context.Context, rng string) ([][]string, error) {
	r, err := parseRange(rng)
	if err != nil {
		return nil, err
	}
	grid := m.snapshot(r.Sheet)
	if r.StartRow == 0 && r.StartCol == 0 {
		return grid, nil
	}
	var out [][]string
	for i, row := range grid {
		n := i + 1
		if (r.StartRow > 0 && n < r.StartRow) || (r.EndRow > 0 && n > r.EndRow) {
			continue
		}
		from, to := 0, len(row)
		if r.StartCol > 0 {
			from = min(r.StartCol-1, len(row))
		}
		if r.EndCol > 0 {
			to = min(r.EndCol, len(row))
		}
		out = append(out, row[from:max(from, to)])
	}
	return out, nil
}

func (m *memoryService) write(r a1Range, values [][]string) int {
	row0, col0 := max(r.StartRow, 1)-1, max(r.StartCol, 1)-1
	grid := m.grids[r.Sheet]
	cells := 0
	for i, vals := range values {
		for len(grid) <= row0+i {
			grid = append(grid, nil)
		}
		row := grid[row0+i]
		for len(row) < col0+len(vals) {
			row = append(row, "")
		}
		copy(row[col0:], vals)
		grid[row0+i] = row
		cells += len(vals)
	}
	m.grids[r.Sheet] = grid
	return cells
}

func (m *memoryService) UpdateValues(_ context.Context, rng string, values [][]string) error {
	r, err := parseRange(rng)
	if err != nil {
		return err
	}
	m.write(r, values)
	return nil
}

func (m *memoryService) AppendValues(_ context.Context, rng string, values [][]string) (int, error) {
	m.appends = append(m.appends, rng)
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	r, err := parseRange(rng)
	if err != nil {
		return 0, err
	}
	// rows go after the last occupied row, as the real API does
	r.StartRow = len(m.grids[r.Sheet]) + 1
	r.StartCol = 1
	m.write(r, values)
	return len(values), nil
}

func (m *memoryService) BatchUpdate(_ context.Context, data []ValueRange) (int, error) {
	m.batches = append(m.batches, data)
	if m.batchErr != nil {
		return 0, m.batchErr
	}
	cells := 0
	for _, d := range data {
		r, err := parseRange(d.Range)
		if err != nil {
			return 0, err
		}
		if r.Sheet == "" {
			return 0, errors.New("range without sheet")
		}
		cells += m.write(r, d.Values)
	}
	return cells, nil
}
