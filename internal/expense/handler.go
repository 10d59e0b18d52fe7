package expense

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arjun/expense-tracker/backend/internal/middleware"
	"github.com/arjun/expense-tracker/backend/internal/models"
	"github.com/arjun/expense-tracker/backend/internal/web"
)

const analyticsTTL = time.Minute

// AnalyticsCache caches per-user analytics payloads with a TTL.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReportStore stores generated report files and issues download links.
type ReportStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Handler holds the expense item HTTP handlers.
type Handler struct {
	svc     *Service
	cache   AnalyticsCache
	reports ReportStore
}

func NewHandler(svc *Service, cache AnalyticsCache, reports ReportStore) *Handler {
	return &Handler{svc: svc, cache: cache, reports: reports}
}

// itemsPayload is the body of the unpaginated listing responses.
type itemsPayload struct {
	Success bool          `json:"success"`
	Data    []models.Item `json:"data"`
	Total   float64       `json:"total"`
}

// listPayload is the body of the paginated listing responses.
type listPayload struct {
	Success    bool          `json:"success"`
	Data       []models.Item `json:"data"`
	TotalItems int64         `json:"totalItems"`
	TotalPrice float64       `json:"totalPrice"`
	Page       int           `json:"currentPage"`
	PageSize   int           `json:"pageSize"`
}

// Create bulk-inserts one batch of items for the current user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.CreateItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.svc.CreateItems(r.Context(), userID, req.Items)
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.cache.Delete(r.Context(), analyticsKey(userID)); err != nil {
		slog.Warn("analytics cache invalidation failed", "user_id", userID, "error", err)
	}
	slog.Info("items created", "user_id", userID, "count", len(items), "form_id", items[0].FormID)
	web.OK(w, http.StatusCreated, items)
}

// Analytics returns the today/week/month/overall sums, cached briefly.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	key := analyticsKey(userID)

	var cached models.Analytics
	if hit, err := h.cache.Get(r.Context(), key, &cached); err == nil && hit {
		web.OK(w, http.StatusOK, cached)
		return
	}

	analytics, err := h.svc.Analytics(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.cache.Set(r.Context(), key, analytics, analyticsTTL); err != nil {
		slog.Warn("analytics cache write failed", "user_id", userID, "error", err)
	}
	web.OK(w, http.StatusOK, analytics)
}

// Today lists the current local day's items.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.TodayItems(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeItems(w, res)
}

// Week lists the current local week's items.
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.WeekItems(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeItems(w, res)
}

// ByDate lists the items of one caller-supplied local calendar day.
func (h *Handler) ByDate(w http.ResponseWriter, r *http.Request) {
	var req models.ByDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.ItemsByDate(r.Context(), middleware.GetUserID(r.Context()), req.Date)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeItems(w, res)
}

// Month pages through one calendar month with optional name search.
func (h *Handler) Month(w http.ResponseWriter, r *http.Request) {
	var req models.ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.MonthItems(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeList(w, res)
}

// Overall pages through a year, a month, or every record.
func (h *Handler) Overall(w http.ResponseWriter, r *http.Request) {
	var req models.ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.OverallItems(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeList(w, res)
}

func writeItems(w http.ResponseWriter, res *ItemsResult) {
	items := res.Items
	if items == nil {
		items = []models.Item{}
	}
	web.JSON(w, http.StatusOK, itemsPayload{Success: true, Data: items, Total: res.Total})
}

func writeList(w http.ResponseWriter, res *ListResult) {
	web.JSON(w, http.StatusOK, listPayload{
		Success:    true,
		Data:       res.Items,
		TotalItems: res.TotalItems,
		TotalPrice: res.TotalPrice,
		Page:       res.Page,
		PageSize:   res.PageSize,
	})
}

// fail maps service errors onto the canonical status table: invalid input
// 400, everything unexpected 500.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingUser),
		errors.Is(err, ErrMissingDate),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrEmptyBatch),
		errors.Is(err, ErrInvalidItem):
		web.Fail(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("item request failed", "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
	}
}

func analyticsKey(userID string) string {
	return "analytics:" + userID
}
