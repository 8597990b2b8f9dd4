package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"gtaa-lab/internal/domain"
)

// Column headers of a daily price CSV, as exported by Yahoo Finance.
const (
	headerDate     = "date"
	headerOpen     = "open"
	headerHigh     = "high"
	headerLow      = "low"
	headerClose    = "close"
	headerAdjClose = "adj close"
	headerVolume   = "volume"
)

// ErrNoRows is returned when a price file contains no usable bars.
var ErrNoRows = errors.New("no price rows")

// ParseCSV reads daily bars for ticker. Headers are matched case-insensitively.
// Rows with a "null" field are skipped. A missing "Adj Close" column falls back to "Close".
func ParseCSV(ticker string, r io.Reader) ([]*domain.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{headerDate, headerOpen, headerHigh, headerLow, headerClose} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	adjCol, ok := cols[headerAdjClose]
	if !ok {
		adjCol = cols[headerClose]
	}

	var points []*domain.PricePoint
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if hasNull(rec) {
			continue
		}

		p := &domain.PricePoint{Ticker: ticker}
		p.TradeDate, err = time.Parse("2006-01-02", rec[cols[headerDate]])
		if err != nil {
			return nil, fmt.Errorf("line %d: parse date: %w", line, err)
		}

		fields := []struct {
			col int
			dst *float64
		}{
			{cols[headerOpen], &p.Open},
			{cols[headerHigh], &p.High},
			{cols[headerLow], &p.Low},
			{cols[headerClose], &p.Close},
			{adjCol, &p.AdjClose},
		}
		for _, f := range fields {
			if *f.dst, err = strconv.ParseFloat(rec[f.col], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if !finite(*f.dst) {
				return nil, fmt.Errorf("line %d: non-finite value %q", line, rec[f.col])
			}
		}

		if vc, ok := cols[headerVolume]; ok {
			if p.Volume, err = parseVolume(rec[vc]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}

		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, ErrNoRows
	}
	return points, nil
}

func hasNull(rec []string) bool {
	for _, v := range rec {
		if strings.EqualFold(v, "null") {
			return true
		}
	}
	return false
}

// parseVolume accepts integer or float-formatted volumes.
func parseVolume(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", s, err)
	}
	if !finite(f) {
		return 0, fmt.Errorf("parse volume %q: non-finite value", s)
	}
	return int64(f), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
