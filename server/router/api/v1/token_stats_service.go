package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/useinkwell/inkwell/store"
)

type tokenTotals struct {
	PromptTokens     int32 `json:"promptTokens"`
	CompletionTokens int32 `json:"completionTokens"`
	TotalTokens      int32 `json:"totalTokens"`
}

type tokenModelStats struct {
	tokenTotals
	Count int32 `json:"count"`
}

type tokenDayStats struct {
	TotalTokens int32 `json:"totalTokens"`
	Count       int32 `json:"count"`
}

type tokenUsageDetail struct {
	Model       string `json:"model"`
	TotalTokens int32  `json:"totalTokens"`
	CreatedTs   int64  `json:"createdTs"`
}

type tokenStatsResponse struct {
	Total   tokenTotals                `json:"total"`
	ByModel map[string]tokenModelStats `json:"byModel"`
	ByDay   map[string]tokenDayStats   `json:"byDay"`
	Details []tokenUsageDetail         `json:"details"`
}

func (s *APIV1Service) registerTokenStatsRoutes(e *echo.Echo) {
	e.GET("/api/v1/ai/tokens", s.getTokenStats)
}

// getTokenStats aggregates the usage ledger for the last N days (30 by
// default). The ledger itself is append-only; everything here is computed
// on read.
func (s *APIV1Service) getTokenStats(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	days := 30
	if v := c.QueryParam("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	since := time.Now().AddDate(0, 0, -days).Unix()

	usages, err := s.Store.ListTokenUsages(c.Request().Context(), &store.FindTokenUsage{
		CreatorID:      &user.ID,
		CreatedTsAfter: &since,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := tokenStatsResponse{
		ByModel: map[string]tokenModelStats{},
		ByDay:   map[string]tokenDayStats{},
		Details: make([]tokenUsageDetail, 0, len(usages)),
	}
	for _, u := range usages {
		resp.Total.PromptTokens += u.PromptTokens
		resp.Total.CompletionTokens += u.CompletionTokens
		resp.Total.TotalTokens += u.TotalTokens

		m := resp.ByModel[u.Model]
		m.PromptTokens += u.PromptTokens
		m.CompletionTokens += u.CompletionTokens
		m.TotalTokens += u.TotalTokens
		m.Count++
		resp.ByModel[u.Model] = m

		day := time.Unix(u.CreatedTs, 0).UTC().Format("2006-01-02")
		d := resp.ByDay[day]
		d.TotalTokens += u.TotalTokens
		d.Count++
		resp.ByDay[day] = d

		resp.Details = append(resp.Details, tokenUsageDetail{
			Model:       u.Model,
			TotalTokens: u.TotalTokens,
			CreatedTs:   u.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
