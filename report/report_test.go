package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/ledger/store"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var admin = ledger.Actor{ID: "pharmacist-1", Role: ledger.RoleAdmin}

type fixture struct {
	ledger  *ledger.Ledger
	service *Service
	log     *MemoryLog
	lot     *ledger.InventoryLot
	entry   *ledger.DistributionEntry
}

// newFixture seeds one lot (LOT001, 100 units, expiring 2025-03-01), one
// pharmacy allocation of 30 and two dispensings.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	l := ledger.New(repo)
	log := &MemoryLog{}
	now := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, log, WithClock(func() time.Time { return now }))

	lot, err := l.Receive(ctx, admin, ledger.LotInput{
		DateIn: ledger.MustParseDate("2025-01-02"), BrandName: "Biogesic", GenericName: "Paracetamol",
		Utils: "tablet", LotNumber: "LOT001", Quantity: 100,
		ExpirationDate: ledger.MustParseDate("2025-03-01"),
	})
	require.NoError(t, err)
	_, err = l.Receive(ctx, admin, ledger.LotInput{
		DateIn: ledger.MustParseDate("2024-06-01"), BrandName: "Amoxil", GenericName: "Amoxicillin",
		Utils: "capsule", LotNumber: "AMX9", Quantity: 50, StockType: ledger.StockDOH,
		ExpirationDate: ledger.MustParseDate("2027-01-01"),
	})
	require.NoError(t, err)

	entry, err := l.Allocate(ctx, admin, ledger.AllocateInput{
		LotID: lot.ID, Date: ledger.MustParseDate("2025-01-03"), Channel: ledger.ChannelPharmacy, Quantity: 30,
	})
	require.NoError(t, err)

	for _, r := range []struct {
		name, gender, given string
		qty                 int
	}{
		{"Jane Doe", "Female", "2025-01-05", 10},
		{"Juan Cruz", "Male", "2025-02-07", 4},
	} {
		_, err := l.Dispense(ctx, admin, ledger.DispenseInput{
			Recipient: ledger.RecipientInput{
				FullName: r.name, Birthdate: ledger.MustParseDate("1990-01-01"),
				Barangay: "Poblacion", Gender: r.gender,
			},
			EntryID: entry.ID, Quantity: r.qty, DateGiven: ledger.MustParseDate(r.given),
		})
		require.NoError(t, err)
	}
	return &fixture{ledger: l, service: svc, log: log, lot: lot, entry: entry}
}

// =============================================================================
// INVENTORY REPORT
// =============================================================================

func TestInventoryReport_TitleAndRows(t *testing.T) {
	f := newFixture(t)

	r, err := f.service.Inventory(context.Background(), admin, InventoryQuery{
		LotNumber: "LOT001",
		Received:  ledger.Period{Month: 1, Year: 2025},
	})
	require.NoError(t, err)

	assert.Equal(t, "Inventory Report - Lot #LOT001 for January 2025", r.Title)
	assert.Len(t, r.ID, 8)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "Biogesic", r.Rows[0][1])
	assert.Equal(t, 70, r.Rows[0][6], "stocks after allocation")

	history, err := f.service.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, r.ID, history[0].ReportID)
	assert.Equal(t, admin.ID, history[0].GeneratedBy)
}

func TestInventoryReport_EmptyMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query InventoryQuery
		want  string
	}{
		{"exact day", InventoryQuery{Received: ledger.Period{On: ledger.MustParseDate("2023-02-03")}}, "No inventory records found for February 3, 2023."},
		{"month", InventoryQuery{Received: ledger.Period{Month: 5, Year: 2023}}, "No inventory records found for May 2023."},
		{"year", InventoryQuery{Received: ledger.Period{Year: 2023}}, "No inventory records found for 2023."},
		{"lot", InventoryQuery{LotNumber: "NOPE"}, "No inventory found for Lot #NOPE."},
		{"stock type", InventoryQuery{StockType: ledger.StockDonations}, "No inventory found matching the provided filters."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Inventory(ctx, admin, tt.query)

			var empty *EmptyReportError
			require.ErrorAs(t, err, &empty)
			assert.Equal(t, tt.want, empty.Message)
			assert.True(t, ledger.IsNotFound(err))
		})
	}

	history, err := f.service.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "empty reports get no id")
}

func TestCheckInventory(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.service.CheckInventory(context.Background(), InventoryQuery{StockType: ledger.StockDOH}))
	assert.Error(t, f.service.CheckInventory(context.Background(), InventoryQuery{LotNumber: "X"}))
}

// =============================================================================
// DISTRIBUTION AND DISPENSING REPORTS
// =============================================================================

func TestDistributionReport_AllChannels(t *testing.T) {
	f := newFixture(t)

	r, err := f.service.Distribution(context.Background(), admin, DistributionQuery{Channel: "all"})
	require.NoError(t, err)

	assert.Equal(t, "Distribution Report - All - All", r.Title)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, 16, r.Rows[0][6], "undispensed balance")
}

func TestDistributionReport_NoMatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Distribution(context.Background(), admin, DistributionQuery{Channel: "RHU 3"})

	var empty *EmptyReportError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "No distributions found for the selected filters.", empty.Message)
}

func TestDispensingReport_Filters(t *testing.T) {
	f := newFixture(t)

	r, err := f.service.Dispensing(context.Background(), admin, ledger.DispensingFilter{
		Gender: "Male",
		Given:  ledger.Period{Month: 2, Year: 2025},
	})
	require.NoError(t, err)

	assert.Equal(t, "Recipient Dispensing Report for February 2025", r.Title)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "Juan Cruz", r.Rows[0][1])
	assert.Equal(t, "Biogesic (Paracetamol)", r.Rows[0][5])
}

func TestAvailableMonths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	months, err := f.service.AvailableMonths(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, months)

	months, err = f.service.AvailableMonths(ctx, 2024)
	require.NoError(t, err)
	assert.Empty(t, months)
}

func TestIssue_RetriesDuplicateID(t *testing.T) {
	f := newFixture(t)
	ids := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	f.service.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	ctx := context.Background()

	first, err := f.service.Inventory(ctx, admin, InventoryQuery{})
	require.NoError(t, err)
	second, err := f.service.Inventory(ctx, admin, InventoryQuery{})
	require.NoError(t, err)

	assert.Equal(t, "aaaaaaaa", first.ID)
	assert.Equal(t, "bbbbbbbb", second.ID)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard(t *testing.T) {
	f := newFixture(t)

	d, err := f.service.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Female": 10, "Male": 4}, d.ByGender)
	assert.Equal(t, map[string]int{"Poblacion": 14}, d.ByBarangay)
	assert.Equal(t, map[string]int{"Biogesic (Paracetamol)": 14}, d.ByMedicine)
	assert.Equal(t, []InventoryLevel{
		{Name: "AMX9 - Amoxil (Amoxicillin)", Stocks: 50},
		{Name: "LOT001 - Biogesic (Paracetamol)", Stocks: 70},
	}, d.InventoryLevels)

	require.Contains(t, d.ExpiringSoon, "LOT001", "expires within three months of 2025-01-15")
	assert.NotContains(t, d.ExpiringSoon, "AMX9")
	assert.Equal(t, 1, d.ExpiringSoon["LOT001"].Count)
}

// =============================================================================
// XLSX EXPORT
// =============================================================================

func TestWriteXLSX(t *testing.T) {
	f := newFixture(t)
	r, err := f.service.Inventory(context.Background(), admin, InventoryQuery{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteXLSX(&buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	title, err := wb.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, r.Title, title)

	header, err := wb.GetCellValue(sheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "Brand Name", header)

	rows, err := wb.GetRows(sheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4+len(r.Rows))
	assert.Contains(t, r.Filename(), "inventory_"+r.ID)
}
