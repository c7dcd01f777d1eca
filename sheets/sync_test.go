package sheets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"finnsync/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	listed   []models.ExportRow
	unlisted []models.ExportRow
	marked   []string
	markErr  error
}

func (f *fakeStore) FetchForExport(_ context.Context, _ models.Kind, _ models.ExportFilter) ([]models.ExportRow, error) {
	return f.listed, nil
}

func (f *fakeStore) FetchUnlistedForExport(_ context.Context, _ models.Kind, filter models.ExportFilter) ([]models.ExportRow, error) {
	if !filter.IncludeUnlisted {
		return nil, nil
	}
	return f.unlisted, nil
}

func (f *fakeStore) MarkExported(_ context.Context, _ models.Kind, keys []string) (int64, error) {
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.marked = append(f.marked, keys...)
	return int64(len(keys)), nil
}

func home(key string, price, area int) models.ExportRow {
	l := models.Listing{
		Kind:       models.KindEiendom,
		Key:        key,
		Status:     "Til salgs",
		Address:    "Storgata 1",
		PostalCode: "0155",
		Price:      models.IntPtr(price),
		URL:        "https://www.finn.no/realestate/homes/ad.html?finnkode=" + key,
		Area:       models.IntPtr(area),
		IsActive:   true,
	}
	l.RecomputePricePerSqm()
	return models.ExportRow{Listing: l}
}

var eieTargets = map[models.Kind]Target{
	models.KindEiendom: {Sheet: "Eie", UnlistedSheet: "Eie(unlisted)"},
}

func eieHeader() []string {
	return Headers(Columns(models.KindEiendom))
}

// seedSheet writes a header and one row per listing, laid out the way an
// earlier append would have.
func seedSheet(svc *memoryService, sheet string, header []string, rows ...models.ExportRow) {
	svc.put(sheet, append([]string(nil), header...))
	byHeader := columnsByHeader(Columns(models.KindEiendom))
	for _, r := range rows {
		svc.put(sheet, buildRow(header, byHeader, r))
	}
}

func TestAppendNewNeverTouchesExistingRows(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	store := &fakeStore{}

	var existing []models.ExportRow
	for i := 1; i <= 10; i++ {
		existing = append(existing, home(fmt.Sprintf("K%02d", i), 3000000+i, 50))
	}
	seedSheet(svc, "Eie", eieHeader(), existing...)
	before := svc.snapshot("Eie")

	// stored values drifted for the existing keys; append must not care
	for i := range existing {
		existing[i].Status = "Solgt"
	}
	store.listed = append(existing, home("N1", 4000000, 60), home("N2", 4100000, 61), home("N3", 4200000, 62))

	sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
	res, err := sync.AppendNew(ctx, models.KindEiendom)
	require.NoError(t, err)
	require.Equal(t, 3, res.Appended)
	require.EqualValues(t, 3, res.Exported)
	require.Equal(t, []string{"N1", "N2", "N3"}, store.marked)

	after := svc.snapshot("Eie")
	require.Len(t, after, 14, "header plus 13 data rows")
	if diff := cmp.Diff(before, after[:11]); diff != "" {
		t.Fatalf("existing rows changed (-before +after):\n%s", diff)
	}
	require.Equal(t, []string{"Eie!A12"}, svc.appends)
	require.Equal(t, "N1", ParseKeyCell(after[11][0]))
	require.Equal(t, "4000000", after[11][4])

	// nothing new the second time
	res, err = sync.AppendNew(ctx, models.KindEiendom)
	require.NoError(t, err)
	require.Zero(t, res.Appended)
	require.Len(t, svc.snapshot("Eie"), 14)
}

func TestAppendNewCreatesHeaderOnEmptySheet(t *testing.T) {
	svc := newMemoryService()
	store := &fakeStore{listed: []models.ExportRow{home("K1", 3000000, 50)}}

	sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
	_, err := sync.AppendNew(context.Background(), models.KindEiendom)
	require.NoError(t, err)

	grid := svc.snapshot("Eie")
	require.Len(t, grid, 2)
	require.Equal(t, eieHeader(), grid[0])
	require.Equal(t, `=HYPERLINK("https://www.finn.no/realestate/homes/ad.html?finnkode=K1","K1")`, grid[1][0])
	require.Equal(t, "60000", grid[1][7])
}

func TestHeaderExtension(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()

	full := eieHeader()
	require.Equal(t, "BIL DAG MVV", full[len(full)-1])
	// an older sheet layout: a manual column and no BIL DAG MVV yet
	old := append([]string{"Notater"}, full[:len(full)-1]...)

	k1 := home("K1", 3000000, 50)
	seedSheet(svc, "Eie", old, k1)
	svc.grids["Eie"][1][0] = "ring megler"
	rowBefore := svc.snapshot("Eie")[1]

	k2 := home("K2", 3500000, 55)
	k2.Commute = &models.Commute{Key: "K2", Minutes: map[string]*int{"bil_dag_mvv": models.IntPtr(25)}}
	store := &fakeStore{listed: []models.ExportRow{k1, k2}}

	sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
	res, err := sync.AppendNew(ctx, models.KindEiendom)
	require.NoError(t, err)
	require.Equal(t, 1, res.Appended)

	grid := svc.snapshot("Eie")
	require.Equal(t, append(old, "BIL DAG MVV"), grid[0])
	require.Equal(t, rowBefore, grid[1])
	require.Len(t, grid[2], len(old)+1)
	require.Equal(t, "", grid[2][0])
	require.Equal(t, "25", grid[2][len(old)])

	// the existing row gets the new column through a safe update
	k1.Commute = &models.Commute{Key: "K1", Minutes: map[string]*int{"bil_dag_mvv": models.IntPtr(30)}}
	store.listed = []models.ExportRow{k1, k2}
	upd, err := sync.UpdateExisting(ctx, models.KindEiendom, AutoDeny)
	require.NoError(t, err)
	require.Equal(t, 1, upd.Safe)
	require.Zero(t, upd.Unsafe)
	require.Len(t, svc.batches, 1)
	require.Equal(t, []ValueRange{{Range: "Eie!R2", Values: [][]string{{"30"}}}}, svc.batches[0])
	require.Equal(t, "30", svc.snapshot("Eie")[1][17])
}

func TestUpdateExistingClassifiesChanges(t *testing.T) {
	ctx := context.Background()

	setup := func() (*memoryService, *fakeStore) {
		svc := newMemoryService()
		stored := home("K1", 4250000, 52)
		sheetRow := stored
		sheetRow.Address = "Gamleveien 3"
		sheetRow.Area = nil
		seedSheet(svc, "Eie", eieHeader(), sheetRow, home("K2", 2000000, 40))
		svc.grids["Eie"][1][4] = "4 250 000 kr"
		return svc, &fakeStore{listed: []models.ExportRow{stored, home("K2", 2000000, 40), home("K3", 1000000, 30)}}
	}

	t.Run("declined", func(t *testing.T) {
		svc, store := setup()
		var proposed []CellChange
		sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
		res, err := sync.UpdateExisting(ctx, models.KindEiendom, func(changes []CellChange) bool {
			proposed = changes
			return false
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Safe)
		require.Equal(t, 1, res.Unsafe)
		require.True(t, res.Declined)
		require.Equal(t, 1, res.CellsUpdated)

		require.Len(t, proposed, 1)
		require.Equal(t, CellChange{
			Sheet: "Eie", Row: 2, Col: 3, Column: "Adresse", Key: "K1",
			Old: "Gamleveien 3", New: "Storgata 1", Kind: UnsafeChange,
		}, proposed[0])

		require.Equal(t, []ValueRange{{Range: "Eie!G2", Values: [][]string{{"52"}}}}, svc.batches[0])
		grid := svc.snapshot("Eie")
		require.Equal(t, "Gamleveien 3", grid[1][2])
		require.Equal(t, "4 250 000 kr", grid[1][4])
		require.Len(t, grid, 3, "update never appends")
	})

	t.Run("approved", func(t *testing.T) {
		svc, store := setup()
		sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
		res, err := sync.UpdateExisting(ctx, models.KindEiendom, AutoApprove)
		require.NoError(t, err)
		require.False(t, res.Declined)
		require.Equal(t, 2, res.CellsUpdated)
		require.Len(t, svc.batches, 1, "one batch write")
		require.Equal(t, "Storgata 1", svc.snapshot("Eie")[1][2])
	})

	t.Run("nothing to do", func(t *testing.T) {
		svc := newMemoryService()
		seedSheet(svc, "Eie", eieHeader(), home("K1", 2000000, 40))
		sync := NewSynchronizer(svc, &fakeStore{listed: []models.ExportRow{home("K1", 2000000, 40)}}, models.ExportFilter{}, eieTargets)
		res, err := sync.UpdateExisting(ctx, models.KindEiendom, func([]CellChange) bool {
			t.Fatal("confirm called without overwrites")
			return false
		})
		require.NoError(t, err)
		require.Zero(t, res.Safe)
		require.Empty(t, svc.batches)
	})
}

func TestAppendFailureLeavesExportedFlags(t *testing.T) {
	svc := newMemoryService()
	svc.appendErr = errors.New("quota exceeded")
	store := &fakeStore{listed: []models.ExportRow{home("K1", 3000000, 50)}}

	sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
	_, err := sync.AppendNew(context.Background(), models.KindEiendom)
	require.ErrorContains(t, err, "quota exceeded")
	require.Empty(t, store.marked)
}

func TestUpdateFailureIsReported(t *testing.T) {
	svc := newMemoryService()
	seedSheet(svc, "Eie", eieHeader(), home("K1", 3000000, 50))
	svc.batchErr = errors.New("backend error")
	stored := home("K1", 3000000, 60)

	sync := NewSynchronizer(svc, &fakeStore{listed: []models.ExportRow{stored}}, models.ExportFilter{}, eieTargets)
	res, err := sync.UpdateExisting(context.Background(), models.KindEiendom, AutoApprove)
	require.ErrorContains(t, err, "backend error")
	require.Zero(t, res.CellsUpdated)
}

func TestUnlistedRowsGoToUnlistedSheet(t *testing.T) {
	svc := newMemoryService()
	gone := home("G1", 3000000, 50)
	gone.IsActive = false
	store := &fakeStore{listed: []models.ExportRow{home("K1", 3000000, 50)}, unlisted: []models.ExportRow{gone}}

	sync := NewSynchronizer(svc, store, models.ExportFilter{IncludeUnlisted: true}, eieTargets)
	res, err := sync.AppendNew(context.Background(), models.KindEiendom)
	require.NoError(t, err)
	require.Equal(t, 2, res.Appended)
	require.Equal(t, []string{"Eie!A2", "'Eie(unlisted)'!A2"}, svc.appends)
	require.Equal(t, "G1", ParseKeyCell(svc.snapshot("Eie(unlisted)")[1][0]))

	svc = newMemoryService()
	store.marked = nil
	sync = NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)
	_, err = sync.AppendNew(context.Background(), models.KindEiendom)
	require.NoError(t, err)
	require.Equal(t, []string{"K1"}, store.marked)
	require.NotContains(t, svc.grids, "Eie(unlisted)")
}

func TestSyncRunsUpdateOnlyWhenFull(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService()
	seedSheet(svc, "Eie", eieHeader(), home("K1", 3000000, 50))
	store := &fakeStore{listed: []models.ExportRow{home("K1", 3000000, 60)}}
	sync := NewSynchronizer(svc, store, models.ExportFilter{}, eieTargets)

	res, err := sync.Sync(ctx, models.KindEiendom, false, AutoApprove)
	require.NoError(t, err)
	require.Nil(t, res.Update)
	require.Empty(t, svc.batches)

	res, err = sync.Sync(ctx, models.KindEiendom, true, AutoApprove)
	require.NoError(t, err)
	require.NotNil(t, res.Update)
	require.Equal(t, 2, res.Update.Unsafe, "area and price per sqm")
}

func TestSynchronizerWithoutService(t *testing.T) {
	sync := NewSynchronizer(nil, &fakeStore{}, models.ExportFilter{}, eieTargets)
	_, err := sync.AppendNew(context.Background(), models.KindEiendom)
	require.ErrorIs(t, err, ErrNotConfigured)

	sync = NewSynchronizer(newMemoryService(), &fakeStore{}, models.ExportFilter{}, eieTargets)
	_, err = sync.AppendNew(context.Background(), models.KindJobs)
	require.ErrorContains(t, err, "no sheet configured")
}
