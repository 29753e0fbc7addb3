package sqlite_test

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/labgate/labgate/internal/labgate/service"
	"github.com/labgate/labgate/internal/labgate/store/memory"
	sqlitestore "github.com/labgate/labgate/internal/labgate/store/sqlite"
)

// Storage faults must surface as distinguishable errors, never as silent
// success and never as a partial ledger write.

func TestRosterStore_Lookup_StorageFaultSurfaces(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	wantErr := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT id, name, role, access_level, authorized").
		WillReturnError(wantErr)

	rs := sqlitestore.NewRosterStore(conn, nil)
	_, err = rs.Lookup(context.Background(), "7001")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped storage fault, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLedgerStore_Recent_StorageFaultSurfaces(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	wantErr := errors.New("database disk image is malformed")
	mock.ExpectQuery("SELECT seq, identity_id, name, role, action, status, recorded_at_ms").
		WillReturnError(wantErr)

	ls := sqlitestore.NewLedgerStore(conn, nil)
	_, err = ls.Recent(context.Background(), 10)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped storage fault, got %v", err)
	}
}

func TestRecordScan_RosterFault_NoLedgerAppend(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery("SELECT id, name, role, access_level, authorized").
		WillReturnError(errors.New("disk I/O error"))

	roster := sqlitestore.NewRosterStore(conn, nil)
	ledger := memory.NewLedgerStore()
	svc := service.NewToggleService(roster, ledger)

	_, err = svc.RecordScan(context.Background(), "7001")
	if err == nil {
		t.Fatal("expected scan to fail on roster fault")
	}
	if errors.Is(err, service.ErrInvalidUser) {
		t.Fatal("storage fault must not be reported as invalid user")
	}
	if n := len(ledger.Records()); n != 0 {
		t.Errorf("expected no ledger append on storage fault, got %d records", n)
	}
}
