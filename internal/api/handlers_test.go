package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/service"
)

type fakeService struct {
	trades      map[string][]*models.Trade
	reports     map[string]*models.PositionReport
	instruments []*models.Instrument
	recorded    []service.RecordRequest
	recordErr   error
	err         error
}

func (f *fakeService) RecordTrade(ctx context.Context, req service.RecordRequest) (*models.Trade, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded = append(f.recorded, req)
	return &models.Trade{ID: len(f.recorded), Instrument: req.Instrument, Side: req.Side, Price: req.Price, Shares: req.Shares}, nil
}

func (f *fakeService) Report(ctx context.Context, instrument string) (*models.PositionReport, error) {
	if r, ok := f.reports[instrument]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: no trades for %s", service.ErrNotFound, instrument)
}

func (f *fakeService) Trades(instrument string) ([]*models.Trade, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.trades[instrument]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: no trades for %s", service.ErrNotFound, instrument)
}

func (f *fakeService) Instruments() ([]*models.Instrument, error) {
	return f.instruments, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func newTestRouter(svc *fakeService, db Pinger) http.Handler {
	return SetupRoutes(NewHandler(svc, db, zerolog.Nop()))
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleReport() *models.PositionReport {
	buy := &models.Trade{
		TradeDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Side:       models.TradeTypeBuy,
		Instrument: "2330",
		Price:      decimal.NewFromInt(50),
		Shares:     100,
	}
	return &models.PositionReport{
		Instrument: "2330",
		Policy:     "fee_inclusive",
		Rows: []models.TradeAnnotation{{
			Trade:      buy,
			Amount:     decimal.NewFromInt(5000),
			Fee:        decimal.NewFromInt(20),
			SharesHeld: 100,
			AvgCost:    decimal.NewNullDecimal(decimal.RequireFromString("50.2")),
			Status:     models.StatusApplied,
		}},
		Summary: models.PositionSummary{
			TotalInvestment: decimal.NewFromInt(5020),
			SharesHeld:      100,
			AvgCost:         decimal.NewNullDecimal(decimal.RequireFromString("50.2")),
			Applied:         1,
		},
	}
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}, fakePinger{}), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = serve(t, newTestRouter(&fakeService{}, fakePinger{err: errors.New("db down")}), "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestGetInstruments(t *testing.T) {
	svc := &fakeService{instruments: []*models.Instrument{{Code: "2330", Name: "TSMC", Trades: 2}}}
	rec := serve(t, newTestRouter(svc, nil), "GET", "/api/v1/instruments", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []models.Instrument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2330", got[0].Code)
	assert.Equal(t, 2, got[0].Trades)
}

func TestGetInstruments_EmptyIsArray(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}, nil), "GET", "/api/v1/instruments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetInstruments_InternalError(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{err: errors.New("connection refused")}, nil), "GET", "/api/v1/instruments", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestGetTrades(t *testing.T) {
	svc := &fakeService{trades: map[string][]*models.Trade{
		"2330": {{ID: 1, Instrument: "2330", Side: models.TradeTypeBuy, Shares: 100, Price: decimal.NewFromInt(50)}},
	}}
	h := newTestRouter(svc, nil)

	rec := serve(t, h, "GET", "/api/v1/instruments/2330/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.True(t, decimal.NewFromInt(50).Equal(got[0].Price))

	rec = serve(t, h, "GET", "/api/v1/instruments/9999/trades", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport_JSON(t *testing.T) {
	svc := &fakeService{reports: map[string]*models.PositionReport{"2330": sampleReport()}}
	rec := serve(t, newTestRouter(svc, nil), "GET", "/api/v1/instruments/2330/report", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.PositionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2330", got.Instrument)
	assert.False(t, got.Summary.ROI.Valid)
	require.True(t, got.Summary.AvgCost.Valid)
	assert.True(t, decimal.RequireFromString("50.2").Equal(got.Summary.AvgCost.Decimal))
	assert.Contains(t, rec.Body.String(), `"roi":null`)
}

func TestGetReport_Text(t *testing.T) {
	svc := &fakeService{reports: map[string]*models.PositionReport{"2330": sampleReport()}}
	rec := serve(t, newTestRouter(svc, nil), "GET", "/api/v1/instruments/2330/report?format=text", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "ROI:              N/A")
	assert.Contains(t, rec.Body.String(), "Average cost:     50.20")
}

func TestGetReport_NotFound(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}, nil), "GET", "/api/v1/instruments/2330/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordTrade(t *testing.T) {
	svc := &fakeService{}
	body := `{"instrument":"2330","side":"BUY","price":"590.5","shares":1000,"fee":841,"date":"2024-01-05"}`

	rec := serve(t, newTestRouter(svc, nil), "POST", "/api/v1/trades", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, svc.recorded, 1)
	req := svc.recorded[0]
	assert.Equal(t, "2330", req.Instrument)
	assert.True(t, decimal.RequireFromString("590.5").Equal(req.Price))
	assert.Equal(t, int64(1000), req.Shares)
	require.True(t, req.Fee.Valid)
	assert.True(t, decimal.NewFromInt(841).Equal(req.Fee.Decimal))
	assert.False(t, req.Tax.Valid)
	assert.Equal(t, "2024-01-05", req.Date)
}

func TestRecordTrade_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"instrument":`, nil, http.StatusBadRequest},
		{"validation", `{"instrument":"2330"}`, fmt.Errorf("%w: shares must be positive", service.ErrInvalidTrade), http.StatusBadRequest},
		{"duplicate", `{"instrument":"2330"}`, fmt.Errorf("%w: order 1", service.ErrDuplicateTrade), http.StatusConflict},
		{"store failure", `{"instrument":"2330"}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newTestRouter(&fakeService{recordErr: tt.err}, nil), "POST", "/api/v1/trades", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}, nil), "DELETE", "/api/v1/trades", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
