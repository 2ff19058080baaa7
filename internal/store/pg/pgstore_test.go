package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

var principalCols = []string{"id", "identifier", "display_name", "secret_hash", "status", "operator", "created_at", "updated_at"}

func TestCreatePrincipal(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("insert into principals").
		WithArgs("p1", "alice@example.com", "Alice", "hash", auth.StatusActive, false).
		WillReturnRows(sqlmock.NewRows(principalCols).AddRow("p1", "alice@example.com", "Alice", "hash", auth.StatusActive, false, now, now))

	p, err := store.CreatePrincipal(context.Background(), auth.Principal{
		ID: "p1", Identifier: "alice@example.com", DisplayName: "Alice", SecretHash: "hash", Status: auth.StatusActive,
	})
	if err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	if p.ID != "p1" || !p.CreatedAt.Equal(now) {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestCreatePrincipalDuplicate(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into principals").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "principals_identifier_key"})

	_, err := store.CreatePrincipal(context.Background(), auth.Principal{Identifier: "alice@example.com"})
	if !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPrincipalByIdentifierNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select .* from principals where identifier").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.PrincipalByIdentifier(context.Background(), "ghost@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembershipsDecodesRank(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select principal_id, organization_id, role, created_at\\s+from memberships").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "organization_id", "role", "created_at"}).
			AddRow("p1", "o1", 3, now).
			AddRow("p1", "o2", 1, now))

	ms, err := store.Memberships(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Memberships: %v", err)
	}
	if len(ms) != 2 || ms[0].Role != auth.RoleManager || ms[1].Role != auth.RoleViewer {
		t.Fatalf("unexpected memberships: %+v", ms)
	}
}

func TestUpsertMembershipUnknownOrganization(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into memberships").
		WithArgs("p1", "missing", int(auth.RoleAnnotator)).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := store.UpsertMembership(context.Background(), auth.Membership{PrincipalID: "p1", OrganizationID: "missing", Role: auth.RoleAnnotator})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMembershipMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("delete from memberships").
		WithArgs("p1", "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteMembership(context.Background(), "p1", "o1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetPrincipalStatus(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update principals set status").
		WithArgs("p1", auth.StatusDisabled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SetPrincipalStatus(context.Background(), "p1", auth.StatusDisabled); err != nil {
		t.Fatalf("SetPrincipalStatus: %v", err)
	}
}

func TestProjectLookup(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from projects where id").
		WithArgs("pr1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "status", "created_at"}).
			AddRow("pr1", "o1", "Images", auth.StatusActive, now))
	mock.ExpectQuery("from projects where id").
		WithArgs("pr2").
		WillReturnError(sql.ErrNoRows)

	p, err := store.Project(context.Background(), "pr1")
	if err != nil || p.OrganizationID != "o1" {
		t.Fatalf("Project = %+v, %v", p, err)
	}
	if _, err := store.Project(context.Background(), "pr2"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditSinkWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("insert into audit_records").
		WithArgs("r1", at, "p1", "authz.deny", "project:pr1", "deny", "forbidden", "req-1", []byte(`{"action":"write"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewAuditSink(db)
	err = sink.Write(context.Background(), audit.Record{
		ID: "r1", OccurredAt: at, ActorID: "p1", Kind: "authz.deny", Resource: "project:pr1",
		Outcome: audit.OutcomeDeny, Reason: "forbidden", RequestID: "req-1",
		Metadata: map[string]string{"action": "write"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditSinkRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectQuery("from audit_records").
		WithArgs(sqlmock.AnyArg(), 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "actor_id", "kind", "resource", "outcome", "reason", "request_id", "metadata"}).
			AddRow("r1", at, "p1", "bridge.issue", "project:pr1", "allow", "", "req-1", []byte(`{"sequence":"2"}`)))

	recs, err := NewAuditSink(db).Recent(context.Background(), at.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 || recs[0].Outcome != audit.OutcomeAllow || recs[0].Metadata["sequence"] != "2" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}
