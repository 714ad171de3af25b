package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	lastIncr     int64
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	m.lastIncr = increment

	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("LOT")
	period := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "LOT-2026-00001" {
		t.Errorf("expected LOT-2026-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "LOT-2026-00002" {
		t.Errorf("expected LOT-2026-00002, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("VAG")
	opts := &Options{Strategy: StrategyCached, RangeSize: 10}
	period := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// First call allocates a range of 10 from the DB.
	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "VAG-2026-00001" {
		t.Errorf("expected VAG-2026-00001, got %s", num)
	}
	if q.lastIncr != 10 {
		t.Errorf("expected range allocation of 10, got %d", q.lastIncr)
	}

	// Next 9 calls are served from memory without touching the DB.
	dbValBefore := q.currentValue
	for i := 2; i <= 10; i++ {
		if _, err := svc.GetNextNumber(ctx, cfg, opts, period); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if q.currentValue != dbValBefore {
		t.Errorf("expected no DB access while range lasts")
	}
}

func TestBuildKey_ResetPeriods(t *testing.T) {
	svc := New(&mockQuerier{})
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		reset string
		want  string
	}{
		{"year", "KAS_2026"},
		{"month", "KAS_2026_03"},
		{"never", "KAS"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig("KAS")
		cfg.ResetPeriod = tt.reset
		if got := svc.buildKey(cfg, period); got != tt.want {
			t.Errorf("buildKey(%s) = %s, want %s", tt.reset, got, tt.want)
		}
	}
}

func TestMockGenerator_Sequences(t *testing.T) {
	m := &MockGenerator{}
	ctx := context.Background()
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first, _ := m.GetNextNumber(ctx, DefaultConfig("KAS"), nil, period)
	second, _ := m.GetNextNumber(ctx, DefaultConfig("KAS"), nil, period)

	if first == second {
		t.Errorf("mock should produce distinct numbers, got %s twice", first)
	}
}
