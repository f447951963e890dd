package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/services"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Reports.Summary(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := s.svc.Reports.Monthly(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthTotalResponses(months))
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Reports.Categories(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryStatsResponses(rows))
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	from, err := queryDate(q, "startDate")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryDate(q, "endDate")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.svc.Reports.CategoryStats(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatisticsResponse(stats))
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := queryInt(q, "n", services.DefaultTopN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if n <= 0 {
		writeError(w, r, core.NewInvalidInput("n must be positive, got %d", n))
		return
	}
	c, err := ParseCriteria(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Reports.Top(r.Context(), c, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(list))
}

func (s *Server) handleAboveAverage(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Reports.AboveAverage(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponses(list))
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r.URL.Query(), "days", services.DefaultTrendDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trend, err := s.svc.Reports.Daily(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyTotalResponses(trend))
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Reports.Growth(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrowthResponse(month, g))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.svc.Reports.Overview(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewResponse(o))
}

func (s *Server) handleYearOverYear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	current := s.now().Year()
	y2, err := queryInt(q, "year2", current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	y1, err := queryInt(q, "year1", y2-1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := s.svc.Reports.YearOverYear(r.Context(), y1, y2)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthTotalResponses(months))
}
