package expense

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/arjun/expense-tracker/backend/internal/models"
)

// fakeStore is an in-memory ItemStore that applies the same filter
// semantics as the Mongo store: user scope, creation-time window,
// case-insensitive substring search, created-desc sort, skip/limit.
type fakeStore struct {
	items   []models.Item
	clock   time.Time
	failure error
}

func (f *fakeStore) matches(q ItemQuery) []models.Item {
	var out []models.Item
	for _, it := range f.items {
		if it.UserID != q.UserID {
			continue
		}
		if q.Window.HasStart && it.CreatedAt.Before(q.Window.Start) {
			continue
		}
		if q.Window.HasEnd && it.CreatedAt.After(q.Window.End) {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) InsertMany(_ context.Context, items []models.Item) ([]models.Item, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	for i := range items {
		items[i].ID = primitive.NewObjectID()
		items[i].CreatedAt = f.clock
	}
	f.items = append(f.items, items...)
	return items, nil
}

func (f *fakeStore) Find(_ context.Context, q ItemQuery) ([]models.Item, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	out := f.matches(q)
	if q.Skip > 0 {
		if q.Skip >= int64(len(out)) {
			return nil, nil
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeStore) Count(_ context.Context, q ItemQuery) (int64, error) {
	if f.failure != nil {
		return 0, f.failure
	}
	return int64(len(f.matches(q))), nil
}

func (f *fakeStore) SumTotal(_ context.Context, q ItemQuery) (float64, error) {
	if f.failure != nil {
		return 0, f.failure
	}
	var sum float64
	for _, it := range f.matches(q) {
		sum += it.TotalPrice
	}
	return sum, nil
}

func newTestService(now time.Time) (*Service, *fakeStore) {
	fs := &fakeStore{clock: now}
	svc := NewService(fs)
	svc.now = func() time.Time { return now }
	return svc, fs
}

func fl(v float64) *float64 { return &v }
func in(v int) *int         { return &v }

func draft(name string, price float64, qty int, total float64) models.ItemDraft {
	return models.ItemDraft{Name: name, Price: fl(price), Quantity: in(qty), TotalPrice: fl(total)}
}

func seed(fs *fakeStore, userID, name string, total float64, createdAt time.Time) {
	fs.items = append(fs.items, models.Item{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		Name:       name,
		Price:      total,
		Quantity:   1,
		TotalPrice: total,
		FormID:     "seedseedse",
		CreatedAt:  createdAt,
	})
}

func TestCreateItems(t *testing.T) {
	now := utc(2025, time.August, 25, 10, 0, 0, 0)

	t.Run("stores the batch under one form id", func(t *testing.T) {
		svc, fs := newTestService(now)
		items, err := svc.CreateItems(context.Background(), "u1", []models.ItemDraft{
			draft("Coffee", 10, 2, 20),
			draft("  Tea  ", 5, 1, 5),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 || len(fs.items) != 2 {
			t.Fatalf("stored %d items, want 2", len(fs.items))
		}
		if items[0].FormID == "" || items[0].FormID != items[1].FormID {
			t.Errorf("form ids differ: %q vs %q", items[0].FormID, items[1].FormID)
		}
		if len(items[0].FormID) != formIDLength {
			t.Errorf("form id length = %d, want %d", len(items[0].FormID), formIDLength)
		}
		if items[1].Name != "Tea" {
			t.Errorf("name not trimmed: %q", items[1].Name)
		}
	})

	t.Run("totalprice is trusted as supplied", func(t *testing.T) {
		svc, _ := newTestService(now)
		// 10 * 2 != 25, still valid: the caller's value wins.
		items, err := svc.CreateItems(context.Background(), "u1", []models.ItemDraft{
			draft("Snacks", 10, 2, 25),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if items[0].TotalPrice != 25 {
			t.Errorf("totalprice = %v, want 25 (never recomputed)", items[0].TotalPrice)
		}
	})

	t.Run("invalid draft fails the whole batch before any write", func(t *testing.T) {
		svc, fs := newTestService(now)
		_, err := svc.CreateItems(context.Background(), "u1", []models.ItemDraft{
			draft("Valid", 10, 1, 10),
			draft("", 5, 1, 5),
		})
		if !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("err = %v, want ErrInvalidItem", err)
		}
		if len(fs.items) != 0 {
			t.Errorf("stored %d items, want 0 (atomic batch)", len(fs.items))
		}
	})

	t.Run("field validation", func(t *testing.T) {
		cases := []struct {
			name  string
			draft models.ItemDraft
		}{
			{"whitespace name", draft("   ", 1, 1, 1)},
			{"missing price", models.ItemDraft{Name: "A", Quantity: in(1), TotalPrice: fl(1)}},
			{"missing quantity", models.ItemDraft{Name: "A", Price: fl(1), TotalPrice: fl(1)}},
			{"missing totalprice", models.ItemDraft{Name: "A", Price: fl(1), Quantity: in(1)}},
			{"negative price", draft("A", -1, 1, 1)},
			{"zero quantity", draft("A", 1, 0, 1)},
			{"negative totalprice", draft("A", 1, 1, -1)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc, fs := newTestService(now)
				_, err := svc.CreateItems(context.Background(), "u1", []models.ItemDraft{tc.draft})
				if !errors.Is(err, ErrInvalidItem) {
					t.Fatalf("err = %v, want ErrInvalidItem", err)
				}
				if len(fs.items) != 0 {
					t.Error("invalid draft was written")
				}
			})
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		svc, _ := newTestService(now)
		if _, err := svc.CreateItems(context.Background(), "u1", nil); !errors.Is(err, ErrEmptyBatch) {
			t.Fatalf("err = %v, want ErrEmptyBatch", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		svc, _ := newTestService(now)
		_, err := svc.CreateItems(context.Background(), "", []models.ItemDraft{draft("A", 1, 1, 1)})
		if !errors.Is(err, ErrMissingUser) {
			t.Fatalf("err = %v, want ErrMissingUser", err)
		}
	})
}

func TestAnalytics(t *testing.T) {
	// Monday 2025-08-25, 15:30 IST.
	now := utc(2025, time.August, 25, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	seed(fs, "u1", "Breakfast", 100, utc(2025, time.August, 25, 5, 0, 0, 0))  // today
	seed(fs, "u1", "Groceries", 50, utc(2025, time.August, 24, 12, 0, 0, 0))  // yesterday (Sunday, prior week)
	seed(fs, "u1", "Cinema", 75, utc(2025, time.August, 10, 12, 0, 0, 0))     // earlier this month
	seed(fs, "u1", "Old stuff", 200, utc(2025, time.July, 10, 12, 0, 0, 0))   // prior month
	seed(fs, "u2", "Other user", 999, utc(2025, time.August, 25, 5, 0, 0, 0)) // not u1

	got, err := svc.Analytics(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Today != 100 {
		t.Errorf("today = %v, want 100", got.Today)
	}
	if got.Week != 100 {
		t.Errorf("week = %v, want 100 (week starts Monday)", got.Week)
	}
	if got.Month != 225 {
		t.Errorf("month = %v, want 225", got.Month)
	}
	if got.Overall != 425 {
		t.Errorf("overall = %v, want 425", got.Overall)
	}
}

func TestAnalyticsMissingUser(t *testing.T) {
	svc, _ := newTestService(utc(2025, time.August, 25, 10, 0, 0, 0))
	if _, err := svc.Analytics(context.Background(), ""); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("err = %v, want ErrMissingUser", err)
	}
}

func TestItemsByDate(t *testing.T) {
	now := utc(2025, time.August, 27, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	// 2025-08-25 IST runs 2025-08-24T18:30Z .. 2025-08-25T18:29:59.999Z.
	seed(fs, "u1", "Inside early", 10, utc(2025, time.August, 24, 19, 0, 0, 0))
	seed(fs, "u1", "Inside late", 20, utc(2025, time.August, 25, 18, 0, 0, 0))
	seed(fs, "u1", "Before window", 30, utc(2025, time.August, 24, 18, 0, 0, 0))
	seed(fs, "u1", "After window", 40, utc(2025, time.August, 25, 18, 45, 0, 0))

	res, err := svc.ItemsByDate(context.Background(), "u1", "2025-08-25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(res.Items))
	}
	if res.Items[0].Name != "Inside late" || res.Items[1].Name != "Inside early" {
		t.Errorf("wrong order: %q, %q", res.Items[0].Name, res.Items[1].Name)
	}
	if res.Total != 30 {
		t.Errorf("total = %v, want 30", res.Total)
	}
}

func TestItemsByDateErrors(t *testing.T) {
	svc, _ := newTestService(utc(2025, time.August, 27, 10, 0, 0, 0))

	if _, err := svc.ItemsByDate(context.Background(), "u1", "not-a-date"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("err = %v, want ErrInvalidDate", err)
	}
	if _, err := svc.ItemsByDate(context.Background(), "u1", ""); !errors.Is(err, ErrMissingDate) {
		t.Errorf("err = %v, want ErrMissingDate", err)
	}
	if _, err := svc.ItemsByDate(context.Background(), "", "2025-08-25"); !errors.Is(err, ErrMissingUser) {
		t.Errorf("err = %v, want ErrMissingUser", err)
	}
}

func TestMonthItemsPagination(t *testing.T) {
	now := utc(2025, time.August, 25, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	// 50 items of 10 each across August.
	for i := 0; i < 50; i++ {
		seed(fs, "u1", "Expense", 10, utc(2025, time.August, 5, 1, i, 0, 0))
	}

	res, err := svc.MonthItems(context.Background(), "u1", models.ListRequest{Page: 2, Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 20 {
		t.Errorf("page size = %d, want 20", len(res.Items))
	}
	if res.TotalItems != 50 {
		t.Errorf("totalItems = %d, want 50", res.TotalItems)
	}
	// The sum must cover every match, not just the returned page.
	if res.TotalPrice != 500 {
		t.Errorf("totalPrice = %v, want 500 (full-match sum, not page sum)", res.TotalPrice)
	}
	if res.Page != 2 || res.PageSize != 20 {
		t.Errorf("page/pageSize = %d/%d, want 2/20", res.Page, res.PageSize)
	}
}

func TestMonthItemsDefaults(t *testing.T) {
	now := utc(2025, time.August, 25, 10, 0, 0, 0)
	svc, fs := newTestService(now)
	seed(fs, "u1", "Expense", 10, utc(2025, time.August, 5, 1, 0, 0, 0))

	res, err := svc.MonthItems(context.Background(), "u1", models.ListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Page != 1 || res.PageSize != 20 {
		t.Errorf("defaults = %d/%d, want 1/20", res.Page, res.PageSize)
	}
	if res.TotalItems != 1 {
		t.Errorf("totalItems = %d, want 1 (current month)", res.TotalItems)
	}
}

func TestMonthItemsSearch(t *testing.T) {
	now := utc(2025, time.August, 25, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	seed(fs, "u1", "Morning Coffee", 120, utc(2025, time.August, 5, 2, 0, 0, 0))
	seed(fs, "u1", "COFFEE beans", 300, utc(2025, time.August, 6, 2, 0, 0, 0))
	seed(fs, "u1", "Tea", 40, utc(2025, time.August, 7, 2, 0, 0, 0))

	res, err := svc.MonthItems(context.Background(), "u1", models.ListRequest{Search: "coffee"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalItems != 2 {
		t.Fatalf("totalItems = %d, want 2 (case-insensitive substring)", res.TotalItems)
	}
	if res.TotalPrice != 420 {
		t.Errorf("totalPrice = %v, want 420", res.TotalPrice)
	}
	for _, it := range res.Items {
		if it.Name == "Tea" {
			t.Error("search matched an unrelated item")
		}
	}
}

func TestOverallItemsWindows(t *testing.T) {
	now := utc(2025, time.August, 25, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	seed(fs, "u1", "This August", 10, utc(2025, time.August, 5, 2, 0, 0, 0))
	seed(fs, "u1", "This March", 20, utc(2025, time.March, 5, 2, 0, 0, 0))
	seed(fs, "u1", "Last year", 40, utc(2024, time.June, 5, 2, 0, 0, 0))

	tests := []struct {
		name      string
		req       models.ListRequest
		wantCount int64
		wantSum   float64
	}{
		{"no filters means everything", models.ListRequest{}, 3, 70},
		{"year only spans the whole year", models.ListRequest{Year: 2025}, 2, 30},
		{"month with year", models.ListRequest{Month: 3, Year: 2025}, 1, 20},
		{"month defaults to current year", models.ListRequest{Month: 8}, 1, 10},
		{"previous year", models.ListRequest{Year: 2024}, 1, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.OverallItems(context.Background(), "u1", tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.TotalItems != tt.wantCount {
				t.Errorf("totalItems = %d, want %d", res.TotalItems, tt.wantCount)
			}
			if res.TotalPrice != tt.wantSum {
				t.Errorf("totalPrice = %v, want %v", res.TotalPrice, tt.wantSum)
			}
		})
	}
}

func TestWeekItemsScopedToUser(t *testing.T) {
	now := utc(2025, time.August, 27, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	seed(fs, "u1", "Mine", 10, utc(2025, time.August, 26, 10, 0, 0, 0))
	seed(fs, "u2", "Theirs", 99, utc(2025, time.August, 26, 10, 0, 0, 0))

	res, err := svc.WeekItems(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Name != "Mine" {
		t.Fatalf("got %d items, want only u1's", len(res.Items))
	}
	if res.Total != 10 {
		t.Errorf("total = %v, want 10", res.Total)
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	svc, fs := newTestService(utc(2025, time.August, 25, 10, 0, 0, 0))
	fs.failure = errors.New("connection reset")

	if _, err := svc.Analytics(context.Background(), "u1"); err == nil {
		t.Error("analytics: want error")
	}
	if _, err := svc.TodayItems(context.Background(), "u1"); err == nil {
		t.Error("today: want error")
	}
	if _, err := svc.MonthItems(context.Background(), "u1", models.ListRequest{}); err == nil {
		t.Error("month: want error")
	}
}

func TestMonthReport(t *testing.T) {
	now := utc(2025, time.August, 25, 10, 0, 0, 0)
	svc, fs := newTestService(now)

	seed(fs, "u1", "Coffee", 120, utc(2025, time.August, 5, 2, 0, 0, 0))
	seed(fs, "u1", "Rent", 15000, utc(2025, time.August, 1, 2, 0, 0, 0))
	seed(fs, "u1", "July thing", 10, utc(2025, time.July, 5, 2, 0, 0, 0))

	report, err := svc.MonthReport(context.Background(), "u1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Month != 8 || report.Year != 2025 {
		t.Errorf("resolved month/year = %d/%d, want 8/2025", report.Month, report.Year)
	}
	if len(report.Items) != 2 {
		t.Errorf("got %d items, want 2", len(report.Items))
	}
	if report.Total != 15120 {
		t.Errorf("total = %v, want 15120", report.Total)
	}
}

func TestGenerateFormID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := generateFormID()
		if len(id) != formIDLength {
			t.Fatalf("length = %d, want %d", len(id), formIDLength)
		}
		for _, c := range id {
			if !strings.ContainsRune(formIDCharset, c) {
				t.Fatalf("unexpected character %q in %q", c, id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 90 {
		t.Errorf("only %d distinct ids out of 100", len(seen))
	}
}
