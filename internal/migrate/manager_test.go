package migrate

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"0001_users.up.sql":   {Data: []byte("create table users (id text);\ncreate index users_id on users (id);")},
		"0001_users.down.sql": {Data: []byte("drop table users;")},
		"0002_posts.up.sql":   {Data: []byte("insert into notes values ('a;b');")},
		"README.md":           {Data: []byte("ignored")},
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("create table a (x text);\ninsert into a values ('x;y');\n  ")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "\ninsert into a values ('x;y');" {
		t.Fatalf("quoted semicolon split: %q", got[1])
	}
}

func TestUpAppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into notes values ('a;b');")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_posts.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := NewManager(db, testFiles()).Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0002_posts.up.sql" {
		t.Fatalf("unexpected applied list: %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpRollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table users").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if _, err := NewManager(db, testFiles()).Up(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from schema_migrations").WithArgs("0001_users.up.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name, err := NewManager(db, testFiles()).Down(context.Background())
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if name != "0001_users.up.sql" {
		t.Fatalf("unexpected rollback: %s", name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownWithNothingApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if _, err := NewManager(db, testFiles(), WithMigrationsTable("custom_migrations")).Down(context.Background()); !errors.Is(err, ErrNothingApplied) {
		t.Fatalf("expected ErrNothingApplied, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
