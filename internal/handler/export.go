package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
)

// table is a CSV export: a header row and data rows.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("export"), "csv")
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "gzip") {
			return true
		}
	}
	return false
}

// writeCSV sends t as an attachment named name.csv, gzip-compressed when the
// client accepts it.
func writeCSV(w http.ResponseWriter, r *http.Request, name string, t table) {
	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	h.Add("Vary", "Accept-Encoding")

	var out io.Writer = w
	if acceptsGzip(r) {
		h.Set("Content-Encoding", "gzip")
		gz := pgzip.NewWriter(w)
		defer func() {
			if err := gz.Close(); err != nil {
				zctx.From(r.Context()).Warn("Close gzip writer", zap.Error(err))
			}
		}()
		out = gz
	}
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(out)
	_ = cw.Write(t.header)
	_ = cw.WriteAll(t.rows)
	if err := cw.Error(); err != nil {
		zctx.From(r.Context()).Warn("Write CSV export", zap.Error(err))
	}
}
