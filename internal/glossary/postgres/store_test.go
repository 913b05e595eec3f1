package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcveil/inkbridge/internal/glossary"
)

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

// mockDB implements DB for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestStore_Migrate(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			if !strings.Contains(sql, "CREATE TABLE") {
				t.Errorf("Migrate SQL should contain CREATE TABLE, got: %s", sql)
			}
			return pgconn.CommandTag{}, nil
		},
	}
	if err := New(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() unexpected error: %v", err)
	}
}

func TestStore_Add(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
			},
			execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
				if !strings.Contains(sql, "INSERT INTO entities") {
					t.Errorf("Add SQL should contain INSERT, got: %s", sql)
				}
				return pgconn.CommandTag{}, nil
			},
		}
		err := New(db).Add(context.Background(), glossary.Entity{
			Category: glossary.Characters, Untranslated: "张三", Translation: "Zhang San",
		})
		if err != nil {
			t.Fatalf("Add() unexpected error: %v", err)
		}
	})

	t.Run("cross category conflict", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(dest ...any) error {
					*(dest[0].(*string)) = string(glossary.Characters)
					return nil
				}}
			},
		}
		err := New(db).Add(context.Background(), glossary.Entity{
			Category: glossary.Places, Untranslated: "天海", Translation: "Heavenly Sea",
		})
		var conflict *glossary.ErrConflictCategory
		if !errors.As(err, &conflict) {
			t.Fatalf("Add() error = %v, want *ErrConflictCategory", err)
		}
		if conflict.Existing != glossary.Characters {
			t.Errorf("conflict.Existing = %q, want characters", conflict.Existing)
		}
	})
}

func TestStore_Get(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(dest ...any) error {
					*(dest[0].(*string)) = string(glossary.Characters)
					*(dest[1].(*string)) = "张三"
					*(dest[2].(*string)) = ""
					*(dest[3].(*string)) = "Zhang San"
					*(dest[4].(*int)) = 3
					*(dest[5].(*string)) = ""
					*(dest[6].(*string)) = string(glossary.GenderMale)
					return nil
				}}
			},
		}
		e, err := New(db).Get(context.Background(), glossary.EntityKey{Category: glossary.Characters, Untranslated: "张三"})
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if e.Translation != "Zhang San" || e.LastChapter != 3 {
			t.Errorf("Get() = %+v, want translation Zhang San, last_chapter 3", e)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
			},
		}
		_, err := New(db).Get(context.Background(), glossary.EntityKey{Category: glossary.Characters, Untranslated: "missing"})
		if !errors.Is(err, glossary.ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	t.Run("removed", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("DELETE 1"), nil
			},
		}
		removed, err := New(db).Delete(context.Background(), glossary.EntityKey{Category: glossary.Characters, Untranslated: "x"})
		if err != nil || !removed {
			t.Fatalf("Delete() = %v, %v, want true, nil", removed, err)
		}
	})

	t.Run("idempotent when absent", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("DELETE 0"), nil
			},
		}
		removed, err := New(db).Delete(context.Background(), glossary.EntityKey{Category: glossary.Characters, Untranslated: "x"})
		if err != nil || removed {
			t.Fatalf("Delete() = %v, %v, want false, nil", removed, err)
		}
	})
}

func TestStore_BulkUpsert(t *testing.T) {
	t.Parallel()
	var execCount int
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			execCount++
			if !strings.Contains(sql, "ON CONFLICT") {
				t.Errorf("BulkUpsert SQL should contain ON CONFLICT, got: %s", sql)
			}
			return pgconn.CommandTag{}, nil
		},
	}
	n, err := New(db).BulkUpsert(context.Background(), []glossary.Entity{
		{Category: glossary.Places, Untranslated: "天海", Translation: "Skyocean"},
		{Category: glossary.Titles, Untranslated: "宗主", Translation: "Sect Master"},
	})
	if err != nil || n != 2 || execCount != 2 {
		t.Fatalf("BulkUpsert() = %d, %v (execCount=%d), want 2, nil, 2", n, err, execCount)
	}
}
