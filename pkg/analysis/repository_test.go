package analysis

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

var repoActionColumns = []string{
	"id", "incident_id", "type", "name", "description", "target_service",
	"target_resource", "risk_level", "risk_score", "blast_radius",
	"requires_approval", "parameters", "execution_mode", "status",
}

func TestActionRepository_LockByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	session := store.NewFromDB(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.|\n)* FROM actions WHERE id (.|\n)* FOR UPDATE").WillReturnRows(
		sqlmock.NewRows(repoActionColumns).AddRow(
			"act-1", "inc-1", "scale_up", "scale_up", "d", "checkout",
			"", "low", 0.2, "low", true, `{"target_replicas":3}`, "dry_run", "approved",
		))
	mock.ExpectCommit()

	repo := NewActionRepository()
	err = session.Tx(context.Background(), func(tx *sqlx.Tx) error {
		act, found, err := repo.LockByID(context.Background(), tx, "act-1")
		if err != nil {
			return err
		}
		if !found {
			t.Fatal("expected to find action")
		}
		if act.Status != types.ActionStatusApproved {
			t.Errorf("expected approved, got %s", act.Status)
		}
		if act.Parameters["target_replicas"] != float64(3) {
			t.Errorf("expected target_replicas 3, got %v", act.Parameters["target_replicas"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestActionRepository_LockByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	session := store.NewFromDB(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.|\n)* FROM actions WHERE id (.|\n)* FOR UPDATE").WillReturnRows(
		sqlmock.NewRows(repoActionColumns))
	mock.ExpectCommit()

	repo := NewActionRepository()
	err = session.Tx(context.Background(), func(tx *sqlx.Tx) error {
		_, found, err := repo.LockByID(context.Background(), tx, "ghost")
		if err != nil {
			return err
		}
		if found {
			t.Error("expected not found")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestActionRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	session := store.NewFromDB(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE actions SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewActionRepository()
	err = session.Tx(context.Background(), func(tx *sqlx.Tx) error {
		return repo.UpdateStatus(context.Background(), tx, "act-1", types.ActionStatusSucceeded)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestActionRepository_ListApprovedIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	dbx := sqlx.NewDb(db, "pgx")

	mock.ExpectQuery("SELECT id FROM actions WHERE status").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("act-1").AddRow("act-2"))

	repo := NewActionRepository()
	ids, err := repo.ListApprovedIDs(context.Background(), dbx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "act-1" || ids[1] != "act-2" {
		t.Errorf("unexpected ids: %v", ids)
	}
}
