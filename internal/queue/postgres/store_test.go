package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcveil/inkbridge/internal/queue"
)

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

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
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

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

func TestStore_Enqueue_AssignsNextPosition(t *testing.T) {
	t.Parallel()
	maxPos := 4
	var gotPosition int
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(**int) = &maxPos
				return nil
			}}
		},
		execFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
			gotPosition = args[7].(int)
			return pgconn.CommandTag{}, nil
		},
	}
	item, err := New(db).Enqueue(context.Background(), queue.Item{BookID: "book-1", Title: "ch1"})
	if err != nil {
		t.Fatalf("Enqueue() unexpected error: %v", err)
	}
	if item.Position != 5 {
		t.Errorf("Enqueue() position = %d, want 5", item.Position)
	}
	if gotPosition != 5 {
		t.Errorf("Enqueue() inserted position = %d, want 5", gotPosition)
	}
}

func TestStore_Enqueue_FirstItemGetsPositionZero(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(**int) = nil
				return nil
			}}
		},
	}
	item, err := New(db).Enqueue(context.Background(), queue.Item{BookID: "book-1", Title: "ch1"})
	if err != nil {
		t.Fatalf("Enqueue() unexpected error: %v", err)
	}
	if item.Position != 0 {
		t.Errorf("Enqueue() position = %d, want 0", item.Position)
	}
}

func TestStore_Dequeue_EmptyQueue(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}
	_, err := New(db).Dequeue(context.Background(), "")
	if !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("Dequeue() error = %v, want ErrEmpty", err)
	}
}

func TestStore_Remove_CompactsPositions(t *testing.T) {
	t.Parallel()
	var compactCalled bool
	var removedPosition int
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*int) = 2
				return nil
			}}
		},
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if len(args) >= 1 {
				if pos, ok := args[len(args)-1].(int); ok && sql[:6] == "UPDATE" {
					compactCalled = true
					removedPosition = pos
				}
			}
			return pgconn.CommandTag{}, nil
		},
	}
	removed, err := New(db).Remove(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("Remove() unexpected error: %v", err)
	}
	if !removed {
		t.Error("Remove() should report removed=true")
	}
	if !compactCalled {
		t.Error("Remove() should issue a compaction UPDATE")
	}
	if removedPosition != 2 {
		t.Errorf("Remove() compacted against position %d, want 2", removedPosition)
	}
}

func TestStore_Remove_NotFoundIsNotAnError(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}
	removed, err := New(db).Remove(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Remove() unexpected error: %v", err)
	}
	if removed {
		t.Error("Remove() should report removed=false for a missing item")
	}
}

func TestStore_HasDuplicate(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(dest ...any) error {
					*dest[0].(*string) = "item-1"
					return nil
				}}
			},
		}
		got, err := New(db).HasDuplicate(context.Background(), "book-1", 3)
		if err != nil {
			t.Fatalf("HasDuplicate() unexpected error: %v", err)
		}
		if !got {
			t.Error("HasDuplicate() = false, want true")
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
				return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
			},
		}
		got, err := New(db).HasDuplicate(context.Background(), "book-1", 3)
		if err != nil {
			t.Fatalf("HasDuplicate() unexpected error: %v", err)
		}
		if got {
			t.Error("HasDuplicate() = true, want false")
		}
	})
}
