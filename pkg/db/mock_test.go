package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dtnitsch/mywi/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })

	return New(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestGetOrCreateDomain_UniqueViolationFallsBackToSelect(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO domains`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(`SELECT .+ FROM domains WHERE name = \$1 AND land_id = \$2`).
		WithArgs("example.com", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "land_id", "name", "title", "description", "keywords", "language", "http_status", "fetched_at", "created_at",
		}).AddRow(42, 7, "example.com", "", "", "", "", 0, nil, time.Now()))

	d, err := db.GetOrCreateDomain(context.Background(), 7, "example.com")
	if err != nil {
		t.Fatalf("GetOrCreateDomain() error = %v", err)
	}
	if d.ID != 42 {
		t.Errorf("GetOrCreateDomain() id = %d, want 42", d.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClaimExpressions_PostgresLocksAndWrapsErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`(?s)UPDATE expressions SET claimed_at = \$1, claim_token = \$2\s+WHERE id IN \(.+FOR UPDATE SKIP LOCKED`).
		WillReturnError(boom)

	_, err := db.ClaimExpressions(context.Background(), 1, FrontierFilter{Limit: 5}, "tok", time.Minute)
	if !errors.Is(err, boom) {
		t.Errorf("ClaimExpressions() error = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClaimExpressions_RejectsZeroLimit(t *testing.T) {
	db, _ := setupMockDB(t)
	if _, err := db.ClaimExpressions(context.Background(), 1, FrontierFilter{}, "tok", time.Minute); err == nil {
		t.Error("ClaimExpressions() with zero limit should fail")
	}
}

func TestUpdateExpression_WritesOnlyPatchedColumns(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`UPDATE expressions SET title = \$1, relevance = \$2 WHERE id = \$3`).
		WithArgs("T", 3.0, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := db.UpdateExpression(context.Background(), 9, models.ExpressionPatch{
		Title:     models.Ptr("T"),
		Relevance: models.Ptr(3.0),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateExpression() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
