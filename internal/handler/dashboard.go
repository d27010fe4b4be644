package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/report"
)

func (h *Handler) dashboardRoutes(r chi.Router) {
	r.Use(h.requireAdmin)
	r.Get("/", h.summary)
	r.Get("/dailysales", h.dailySales)
	r.Get("/weeklysales", h.weeklySales)
	r.Get("/monthlysales", h.monthlySales)
	r.Get("/yearlysales", h.monthlySales)
	r.Get("/productSales", h.productSales)
	r.Get("/productSalesByMonth", h.productSalesByMonth)
	r.Get("/productSalesByYear", h.productSalesByYear)
	r.Get("/productTrends", h.productTrends)
}

type productSalesResponse struct {
	ProductName   string        `json:"productName"`
	TotalSold     int64         `json:"totalSold"`
	TotalRevenue  float64       `json:"totalRevenue"`
	PopularAddons [][]addonLine `json:"popularAddons"`
}

func addonSets(sets [][]order.Addon) [][]addonLine {
	out := make([][]addonLine, len(sets))
	for i, s := range sets {
		out[i] = addonLines(s)
	}
	return out
}

func toProductSales(p *report.ProductSales) productSalesResponse {
	return productSalesResponse{
		ProductName:   p.ProductName,
		TotalSold:     p.TotalSold,
		TotalRevenue:  p.TotalRevenue.InexactFloat64(),
		PopularAddons: addonSets(p.PopularAddons),
	}
}

type summaryResponse struct {
	TotalOrdersToday int64                  `json:"totalOrdersToday"`
	TotalSalesToday  float64                `json:"totalSalesToday"`
	PendingOrders    int64                  `json:"pendingOrders"`
	CompletedOrders  int64                  `json:"completedOrders"`
	TotalUsers       int64                  `json:"totalUsers"`
	TopProductsToday []productSalesResponse `json:"topProductsToday"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Reports.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Dashboard summary retrieved successfully", summaryResponse{
		TotalOrdersToday: s.TotalOrdersToday,
		TotalSalesToday:  s.TotalSalesToday.InexactFloat64(),
		PendingOrders:    s.PendingOrders,
		CompletedOrders:  s.CompletedOrders,
		TotalUsers:       s.TotalUsers,
		TopProductsToday: mapSlice(s.TopProductsToday, toProductSales),
	})
}

type daySalesResponse struct {
	Day        int     `json:"day"`
	Date       string  `json:"date"`
	TotalSales float64 `json:"totalSales"`
	OrderCount int64   `json:"orderCount"`
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.DailySales(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days := mapSlice(res.Days, func(d *report.DaySales) daySalesResponse {
		return daySalesResponse{Day: d.Day, Date: d.Date, TotalSales: d.TotalSales.InexactFloat64(), OrderCount: d.OrderCount}
	})

	if wantsCSV(r) {
		t := table{header: []string{"day", "date", "totalSales", "orderCount"}}
		for _, d := range days {
			t.add(itoa(d.Day), d.Date, money(d.TotalSales), itoa64(d.OrderCount))
		}
		writeCSV(w, r, "daily-sales-"+itoa(res.Year)+"-"+itoa(res.Month), t)
		return
	}
	writeData(w, http.StatusOK, "Daily sales retrieved successfully", map[string]any{
		"year":  res.Year,
		"month": res.Month,
		"days":  days,
	})
}

type weekSalesResponse struct {
	Week       string  `json:"week"`
	TotalSales float64 `json:"totalSales"`
	OrderCount int64   `json:"orderCount"`
}

func (h *Handler) weeklySales(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.WeeklySales(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	weeks := mapSlice(res.Weeks, func(wk *report.WeekSales) weekSalesResponse {
		return weekSalesResponse{Week: wk.Label, TotalSales: wk.TotalSales.InexactFloat64(), OrderCount: wk.OrderCount}
	})

	if wantsCSV(r) {
		t := table{header: []string{"week", "totalSales", "orderCount"}}
		for _, wk := range weeks {
			t.add(wk.Week, money(wk.TotalSales), itoa64(wk.OrderCount))
		}
		writeCSV(w, r, "weekly-sales-"+itoa(res.Year), t)
		return
	}
	writeData(w, http.StatusOK, "Weekly sales retrieved successfully", map[string]any{
		"year":  res.Year,
		"weeks": weeks,
	})
}

type monthSalesResponse struct {
	Month      string  `json:"month"`
	TotalSales float64 `json:"totalSales"`
	OrderCount int64   `json:"orderCount"`
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.MonthlySales(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	months := mapSlice(res.Months, func(m *report.MonthSales) monthSalesResponse {
		return monthSalesResponse{Month: m.Name, TotalSales: m.TotalSales.InexactFloat64(), OrderCount: m.OrderCount}
	})

	if wantsCSV(r) {
		t := table{header: []string{"month", "totalSales", "orderCount"}}
		for _, m := range months {
			t.add(m.Month, money(m.TotalSales), itoa64(m.OrderCount))
		}
		writeCSV(w, r, "monthly-sales-"+itoa(res.Year), t)
		return
	}
	writeData(w, http.StatusOK, "Monthly sales retrieved successfully", map[string]any{
		"year":   res.Year,
		"months": months,
	})
}

func (h *Handler) productSales(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.TopProductsByDay(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products := mapSlice(res.Products, toProductSales)

	if wantsCSV(r) {
		writeCSV(w, r, "product-sales-"+res.Date, productTable(products))
		return
	}
	writeData(w, http.StatusOK, "Top products retrieved successfully", map[string]any{
		"date":     res.Date,
		"limit":    res.Limit,
		"products": products,
	})
}

func (h *Handler) productSalesByMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.TopProductsByMonth(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeRanking(w, r, res, "product-sales-"+itoa(res.Year)+"-"+itoa(res.Month))
}

func (h *Handler) productSalesByYear(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.TopProductsByYear(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeRanking(w, r, res, "product-sales-"+itoa(res.Year))
}

func (h *Handler) writeRanking(w http.ResponseWriter, r *http.Request, res *report.PeriodRanking, name string) {
	products := mapSlice(res.Products, toProductSales)
	if wantsCSV(r) {
		writeCSV(w, r, name, productTable(products))
		return
	}
	data := map[string]any{"year": res.Year, "products": products}
	if res.Month != 0 {
		data["month"] = res.Month
	}
	writeData(w, http.StatusOK, "Product sales retrieved successfully", data)
}

type trendDayResponse struct {
	Date          string        `json:"date"`
	TotalSold     int64         `json:"totalSold"`
	TotalRevenue  float64       `json:"totalRevenue"`
	AddonExamples [][]addonLine `json:"addonExamples"`
}

func (h *Handler) productTrends(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Reports.ProductTrend(r.Context(), r.URL.Query().Get("productName"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trend := mapSlice(res.Days, func(d *report.TrendDay) trendDayResponse {
		return trendDayResponse{
			Date:          d.Date,
			TotalSold:     d.TotalSold,
			TotalRevenue:  d.TotalRevenue.InexactFloat64(),
			AddonExamples: addonSets(d.AddonExamples),
		}
	})

	if wantsCSV(r) {
		t := table{header: []string{"date", "totalSold", "totalRevenue"}}
		for _, d := range trend {
			t.add(d.Date, itoa64(d.TotalSold), money(d.TotalRevenue))
		}
		writeCSV(w, r, "product-trend", t)
		return
	}
	writeData(w, http.StatusOK, "Product trend retrieved successfully", map[string]any{
		"productName": res.ProductName,
		"days":        trend,
	})
}

func yearMonth(r *http.Request) (year, month int, err error) {
	if year, err = queryInt(r, "year"); err != nil {
		return 0, 0, err
	}
	if month, err = queryInt(r, "month"); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func productTable(products []productSalesResponse) table {
	t := table{header: []string{"productName", "totalSold", "totalRevenue"}}
	for _, p := range products {
		t.add(p.ProductName, itoa64(p.TotalSold), money(p.TotalRevenue))
	}
	return t
}

func itoa(n int) string     { return strconv.Itoa(n) }
func itoa64(n int64) string { return strconv.FormatInt(n, 10) }
func money(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
