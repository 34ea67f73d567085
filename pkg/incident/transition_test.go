package incident

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

func TestTransition_AppliesLegalTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(incidentColumns).AddRow(
		"inc-1", "t", "d", "detected", "high", "payments", "[]",
		time.Now(), nil, "{}", "{}", "fp", 0, nil,
	)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.|\n)* FROM incidents WHERE id (.|\n)* FOR UPDATE").WillReturnRows(rows)
	mock.ExpectExec("UPDATE incidents SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session := store.NewFromDB(db, zap.NewNop())
	repo := NewRepository(session)

	err = session.Tx(context.Background(), func(tx *sqlx.Tx) error {
		inc, err := repo.Transition(context.Background(), tx, "inc-1", types.IncidentStatusAnalyzing)
		if err != nil {
			return err
		}
		if inc.Status != types.IncidentStatusAnalyzing {
			t.Errorf("expected status analyzing, got %v", inc.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransition_RejectsIllegalTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(incidentColumns).AddRow(
		"inc-1", "t", "d", "resolved", "high", "payments", "[]",
		time.Now(), time.Now(), "{}", "{}", "fp", 0, nil,
	)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.|\n)* FROM incidents WHERE id (.|\n)* FOR UPDATE").WillReturnRows(rows)
	mock.ExpectRollback()

	session := store.NewFromDB(db, zap.NewNop())
	repo := NewRepository(session)

	err = session.Tx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := repo.Transition(context.Background(), tx, "inc-1", types.IncidentStatusAnalyzing)
		return err
	})
	if err == nil {
		t.Fatal("expected illegal transition from resolved to be rejected")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
