package expense

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/arjun/expense-tracker/backend/internal/models"
)

var (
	ErrMissingUser = errors.New("user ID missing")
	ErrMissingDate = errors.New("date missing")
	ErrEmptyBatch  = errors.New("items array is required")
	ErrInvalidItem = errors.New("invalid item")
)

const (
	defaultPage  = 1
	defaultLimit = 20

	formIDLength  = 10
	formIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ItemQuery is the store filter composed by the service: user scope, an
// optional creation-time window, an optional case-insensitive substring
// match on the item name, and skip/limit for pagination.
type ItemQuery struct {
	UserID string
	Window Window
	Search string
	Skip   int64
	Limit  int64
}

// ItemStore defines the persistence operations the service needs. Find
// returns items sorted by creation time descending; SumTotal sums
// totalprice over every matching record regardless of Skip/Limit.
type ItemStore interface {
	InsertMany(ctx context.Context, items []models.Item) ([]models.Item, error)
	Find(ctx context.Context, q ItemQuery) ([]models.Item, error)
	Count(ctx context.Context, q ItemQuery) (int64, error)
	SumTotal(ctx context.Context, q ItemQuery) (float64, error)
}

// Service composes time windows and store queries for one user's expense
// items. now is injectable for tests and defaults to time.Now.
type Service struct {
	store ItemStore
	now   func() time.Time
}

func NewService(store ItemStore) *Service {
	return &Service{store: store, now: time.Now}
}

// ItemsResult is the payload of the unpaginated listings (today, week,
// by-date): the full matching list plus its sum.
type ItemsResult struct {
	Items []models.Item
	Total float64
}

// ListResult is the payload of the paginated listings (month, overall).
type ListResult struct {
	Items      []models.Item `json:"data"`
	TotalItems int64         `json:"totalItems"`
	TotalPrice float64       `json:"totalPrice"`
	Page       int           `json:"currentPage"`
	PageSize   int           `json:"pageSize"`
}

// CreateItems validates the whole batch, then bulk-inserts it under one
// shared form ID. Validation is a pre-pass: any invalid draft fails the
// call before a single write happens. TotalPrice is stored exactly as
// supplied, even when it disagrees with Price * Quantity.
func (s *Service) CreateItems(ctx context.Context, userID string, drafts []models.ItemDraft) ([]models.Item, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if len(drafts) == 0 {
		return nil, ErrEmptyBatch
	}

	formID := generateFormID()
	items := make([]models.Item, 0, len(drafts))
	for _, d := range drafts {
		name := strings.TrimSpace(d.Name)
		if name == "" || d.Price == nil || d.Quantity == nil || d.TotalPrice == nil {
			return nil, fmt.Errorf("%w: all fields are required for each item", ErrInvalidItem)
		}
		if *d.Price < 0 || *d.Quantity < 1 || *d.TotalPrice < 0 {
			return nil, fmt.Errorf("%w: invalid price, quantity, or total price", ErrInvalidItem)
		}
		items = append(items, models.Item{
			UserID:     userID,
			Name:       name,
			Price:      *d.Price,
			Quantity:   *d.Quantity,
			TotalPrice: *d.TotalPrice,
			FormID:     formID,
		})
	}

	return s.store.InsertMany(ctx, items)
}

// Analytics sums totalprice over the today, week, month-to-date and
// overall windows. Each bucket is a separate aggregate round trip.
func (s *Service) Analytics(ctx context.Context, userID string) (*models.Analytics, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	now := s.now()
	windows := []Window{
		DayWindow(now),
		WeekWindow(now),
		MonthToDateWindow(now),
		Unbounded(),
	}
	sums := make([]float64, len(windows))
	for i, w := range windows {
		total, err := s.store.SumTotal(ctx, ItemQuery{UserID: userID, Window: w})
		if err != nil {
			return nil, fmt.Errorf("analytics sum: %w", err)
		}
		sums[i] = total
	}
	return &models.Analytics{Today: sums[0], Week: sums[1], Month: sums[2], Overall: sums[3]}, nil
}

// TodayItems lists the current local day's items, newest first.
func (s *Service) TodayItems(ctx context.Context, userID string) (*ItemsResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.listAll(ctx, ItemQuery{UserID: userID, Window: DayWindow(s.now())})
}

// WeekItems lists the current local week's items (Monday through Sunday).
func (s *Service) WeekItems(ctx context.Context, userID string) (*ItemsResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.listAll(ctx, ItemQuery{UserID: userID, Window: WeekWindow(s.now())})
}

// ItemsByDate lists the items of one local calendar day.
func (s *Service) ItemsByDate(ctx context.Context, userID, dateStr string) (*ItemsResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if dateStr == "" {
		return nil, ErrMissingDate
	}
	w, err := DateWindow(dateStr)
	if err != nil {
		return nil, err
	}
	return s.listAll(ctx, ItemQuery{UserID: userID, Window: w})
}

// listAll fetches every match and sums the returned records. These
// listings are unpaginated, so the in-memory sum covers the full result.
func (s *Service) listAll(ctx context.Context, q ItemQuery) (*ItemsResult, error) {
	items, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	var total float64
	for _, it := range items {
		total += it.TotalPrice
	}
	return &ItemsResult{Items: items, Total: total}, nil
}

// MonthItems pages through one calendar month (defaulting to the current
// one) with optional name search.
func (s *Service) MonthItems(ctx context.Context, userID string, req models.ListRequest) (*ListResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.listPaged(ctx, userID, MonthWindow(s.now(), req.Month, req.Year), req)
}

// OverallItems pages through a caller-chosen span: a whole year when only
// the year is given, a calendar month when the month is given, otherwise
// every record.
func (s *Service) OverallItems(ctx context.Context, userID string, req models.ListRequest) (*ListResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	w := Unbounded()
	switch {
	case req.Month != 0:
		w = MonthWindow(s.now(), req.Month, req.Year)
	case req.Year != 0:
		w = YearWindow(req.Year)
	}
	return s.listPaged(ctx, userID, w, req)
}

// listPaged issues the three round trips of a paginated listing: count,
// paged find, and a full-match sum. The sum is a separate aggregate on
// purpose: the page is truncated by pagination, so summing it would
// undercount.
func (s *Service) listPaged(ctx context.Context, userID string, w Window, req models.ListRequest) (*ListResult, error) {
	page := req.Page
	if page < 1 {
		page = defaultPage
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	q := ItemQuery{
		UserID: userID,
		Window: w,
		Search: strings.TrimSpace(req.Search),
		Skip:   int64(page-1) * int64(limit),
		Limit:  int64(limit),
	}

	count, err := s.store.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	items, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	sum, err := s.store.SumTotal(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sum items: %w", err)
	}

	if items == nil {
		items = []models.Item{}
	}
	return &ListResult{
		Items:      items,
		TotalItems: count,
		TotalPrice: sum,
		Page:       page,
		PageSize:   limit,
	}, nil
}

// generateFormID returns the random alphanumeric tag shared by every item
// of one create call.
func generateFormID() string {
	b := make([]byte, formIDLength)
	for i := range b {
		b[i] = formIDCharset[rand.IntN(len(formIDCharset))]
	}
	return string(b)
}
