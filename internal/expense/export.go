package expense

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arjun/expense-tracker/backend/internal/middleware"
	"github.com/arjun/expense-tracker/backend/internal/models"
	"github.com/arjun/expense-tracker/backend/internal/web"
)

const reportURLExpiry = 15 * time.Minute

// MonthReport gathers every item of one calendar month plus its sum, for
// the CSV export. Zero month/year default to the current local ones.
type MonthReport struct {
	Items []models.Item
	Total float64
	Month int
	Year  int
}

// MonthReport fetches the full (unpaginated) month of items.
func (s *Service) MonthReport(ctx context.Context, userID string, month, year int) (*MonthReport, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	now := s.now()
	month, year = ResolveMonthYear(now, month, year)
	q := ItemQuery{UserID: userID, Window: MonthWindow(now, month, year)}

	items, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	total, err := s.store.SumTotal(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sum items: %w", err)
	}
	return &MonthReport{Items: items, Total: total, Month: month, Year: year}, nil
}

// exportData is the payload of GET /api/item/export.
type exportData struct {
	URL        string  `json:"url"`
	ObjectKey  string  `json:"objectKey"`
	TotalItems int     `json:"totalItems"`
	TotalPrice float64 `json:"totalPrice"`
}

// Export builds a CSV report of one month's items, uploads it and returns
// a presigned download URL.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))

	report, err := h.svc.MonthReport(r.Context(), userID, month, year)
	if err != nil {
		h.fail(w, err)
		return
	}

	data, err := reportCSV(report)
	if err != nil {
		slog.Error("report csv build failed", "user_id", userID, "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	key := fmt.Sprintf("%s/%04d-%02d-%s.csv", userID, report.Year, report.Month, uuid.New().String())
	if err := h.reports.Upload(r.Context(), key, data, "text/csv"); err != nil {
		slog.Error("report upload failed", "user_id", userID, "key", key, "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	url, err := h.reports.PresignedURL(r.Context(), key, reportURLExpiry)
	if err != nil {
		slog.Error("report presign failed", "user_id", userID, "key", key, "error", err)
		web.Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("report exported", "user_id", userID, "key", key, "items", len(report.Items))
	web.OK(w, http.StatusOK, exportData{
		URL:        url,
		ObjectKey:  key,
		TotalItems: len(report.Items),
		TotalPrice: report.Total,
	})
}

// reportCSV renders the report rows plus a trailing total row.
func reportCSV(report *MonthReport) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write([]string{"name", "price", "quantity", "totalprice", "form_id", "created_at"}); err != nil {
		return nil, err
	}
	for _, it := range report.Items {
		row := []string{
			it.Name,
			strconv.FormatFloat(it.Price, 'f', -1, 64),
			strconv.Itoa(it.Quantity),
			strconv.FormatFloat(it.TotalPrice, 'f', -1, 64),
			it.FormID,
			it.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	if err := cw.Write([]string{"total", "", "", strconv.FormatFloat(report.Total, 'f', -1, 64), "", ""}); err != nil {
		return nil, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
