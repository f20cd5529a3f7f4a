// Package ledger reads and writes trade ledgers kept as CSV files.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// ErrUnsupportedSide marks rows such as dividends that are not trades
var ErrUnsupportedSide = errors.New("unsupported trade side")

// orderNamespace seeds order ids derived from ledger rows
var orderNamespace = uuid.MustParse("8f5d2c1e-4b7a-4e4e-9a51-3f0c6d2b7e10")

type field int

const (
	fieldUnknown field = iota
	fieldDate
	fieldSide
	fieldInstrument
	fieldName
	fieldPrice
	fieldShares
	fieldBuyPrice
	fieldBuyShares
	fieldSellPrice
	fieldSellShares
	fieldFee
	fieldTax
	fieldOrderID
)

var headerAliases = map[string]field{
	"date":       fieldDate,
	"trade_date": fieldDate,
	"交易日期":       fieldDate,
	"side":       fieldSide,
	"買/賣/股利":     fieldSide,
	"instrument": fieldInstrument,
	"code":       fieldInstrument,
	"代號":         fieldInstrument,
	"name":       fieldName,
	"股票":         fieldName,
	"price":      fieldPrice,
	"shares":     fieldShares,
	"買入價格":       fieldBuyPrice,
	"買入股數":       fieldBuyShares,
	"賣出價格":       fieldSellPrice,
	"賣出股數":       fieldSellShares,
	"fee":        fieldFee,
	"手續費":        fieldFee,
	"tax":        fieldTax,
	"交易稅":        fieldTax,
	"order_id":   fieldOrderID,
}

// Header is the layout used for new ledger files
var Header = []string{"date", "side", "instrument", "name", "price", "shares", "fee", "tax", "order_id"}

var dateLayouts = []string{"2006/01/02", "2006-01-02", time.RFC3339, "2006/1/2", "2006-01-02 15:04:05"}

// RowError describes a ledger row that could not be read
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// layout maps column positions to fields
type layout []field

func (l layout) has(f field) bool {
	for _, c := range l {
		if c == f {
			return true
		}
	}
	return false
}

func parseHeader(header []string) (layout, error) {
	cols := make(layout, len(header))
	seen := make(map[field]bool)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		f := headerAliases[name]
		cols[i] = f
		seen[f] = true
	}

	for _, required := range []field{fieldDate, fieldSide, fieldInstrument} {
		if !seen[required] {
			return nil, fmt.Errorf("ledger header is missing a %s column", required)
		}
	}
	if !seen[fieldPrice] && !(seen[fieldBuyPrice] && seen[fieldSellPrice]) {
		return nil, errors.New("ledger header is missing price columns")
	}
	if !seen[fieldShares] && !(seen[fieldBuyShares] && seen[fieldSellShares]) {
		return nil, errors.New("ledger header is missing share columns")
	}
	return cols, nil
}

var fieldNames = map[field]string{
	fieldDate:       "date",
	fieldSide:       "side",
	fieldInstrument: "instrument",
}

func (f field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// Reader decodes trades from a CSV ledger
type Reader struct {
	log zerolog.Logger
}

// NewReader creates a ledger reader
func NewReader(log zerolog.Logger) *Reader {
	return &Reader{log: log.With().Str("component", "ledger").Logger()}
}

// ReadTrades reads every row of a ledger. Rows that fail to parse are
// skipped and returned as RowErrors; only an unreadable file or header
// fails the whole read.
//
// A header without an order_id column may still carry order ids in one
// extra trailing field, as written by Writer. Rows with no order id get
// one derived from their content and the number of identical rows before
// them, so ids survive rows being inserted or reordered.
func (r *Reader) ReadTrades(in io.Reader) ([]*models.Trade, []RowError, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ledger header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, nil, err
	}

	trailingID := !cols.has(fieldOrderID)
	seen := make(map[string]int)

	var trades []*models.Trade
	var rowErrs []RowError
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrs = append(rowErrs, r.skip(parseErr.StartLine, err))
				continue
			}
			return nil, nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		t, err := decodeRow(cols, record, trailingID)
		if err != nil {
			rowErrs = append(rowErrs, r.skip(line, err))
			continue
		}
		if t.OrderID == "" {
			content := strings.Join(record, "|")
			t.OrderID = rowOrderID(content, seen[content])
			seen[content]++
		}
		t.ID = len(trades) + 1
		trades = append(trades, t)
	}

	return trades, rowErrs, nil
}

// rowOrderID derives a stable order id for the n-th occurrence of a row
func rowOrderID(content string, n int) string {
	return uuid.NewSHA1(orderNamespace, []byte(content+"|"+strconv.Itoa(n))).String()
}

func (r *Reader) skip(line int, err error) RowError {
	r.log.Warn().Int("line", line).Err(err).Msg("Skipping ledger row")
	return RowError{Line: line, Err: err}
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func decodeRow(cols layout, record []string, trailingID bool) (*models.Trade, error) {
	values := make(map[field]string, len(cols)+1)
	for i, f := range cols {
		if f == fieldUnknown || i >= len(record) {
			continue
		}
		values[f] = strings.TrimSpace(record[i])
	}
	if trailingID && len(record) > len(cols) {
		values[fieldOrderID] = strings.TrimSpace(record[len(cols)])
	}

	t := &models.Trade{Source: models.SourceLedger, OrderID: values[fieldOrderID], Name: values[fieldName]}

	side, err := ParseSide(values[fieldSide])
	if err != nil {
		return nil, err
	}
	t.Side = side

	if t.TradeDate, err = ParseDate(values[fieldDate]); err != nil {
		return nil, err
	}
	if t.Instrument, err = NormalizeCode(values[fieldInstrument]); err != nil {
		return nil, err
	}

	priceCol, sharesCol := fieldPrice, fieldShares
	if values[priceCol] == "" {
		priceCol, sharesCol = fieldBuyPrice, fieldBuyShares
		if side == models.TradeTypeSell {
			priceCol, sharesCol = fieldSellPrice, fieldSellShares
		}
	}
	if t.Price, err = parseAmount(values[priceCol]); err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}
	if t.Shares, err = parseShares(values[sharesCol]); err != nil {
		return nil, fmt.Errorf("invalid shares: %w", err)
	}
	if t.Fee, err = parseOptionalAmount(values[fieldFee]); err != nil {
		return nil, fmt.Errorf("invalid fee: %w", err)
	}
	if t.Tax, err = parseOptionalAmount(values[fieldTax]); err != nil {
		return nil, fmt.Errorf("invalid tax: %w", err)
	}
	return t, nil
}

var localSides = map[string]string{
	models.TradeTypeBuy:  "買",
	models.TradeTypeSell: "賣",
}

// ParseSide maps ledger side labels to trade types
func ParseSide(s string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "買", "BUY", "B":
		return models.TradeTypeBuy, nil
	case "賣", "SELL", "S":
		return models.TradeTypeSell, nil
	case "股利", "DIVIDEND":
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSide, s)
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// ParseDate accepts the ledger date layouts, slash or dash separated
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if d, err := time.Parse(l, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, errors.New("value is empty")
	}
	return decimal.NewFromString(s)
}

func parseOptionalAmount(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// parseShares accepts whole numbers, including spreadsheet floats like "1000.0"
func parseShares(s string) (int64, error) {
	d, err := parseAmount(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("fractional shares %s", d)
	}
	return d.IntPart(), nil
}

// Writer appends trades to a CSV ledger using the ledger's own layout.
// When the layout has no order_id column the order id is written as one
// extra trailing field.
type Writer struct {
	cw         *csv.Writer
	header     []string
	cols       layout
	localized  bool
	trailingID bool
}

// NewWriter creates a writer for the given header. A nil header selects Header.
func NewWriter(out io.Writer, header []string) (*Writer, error) {
	if header == nil {
		header = Header
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	localized := false
	for _, h := range header {
		if strings.TrimSpace(h) == "買/賣/股利" {
			localized = true
		}
	}
	return &Writer{
		cw:         csv.NewWriter(out),
		header:     header,
		cols:       cols,
		localized:  localized,
		trailingID: !cols.has(fieldOrderID),
	}, nil
}

// WriteHeader writes the writer's header row, naming the trailing order id
// column when the layout lacks one
func (w *Writer) WriteHeader() error {
	header := w.header
	if w.trailingID {
		header = append(append([]string(nil), header...), "order_id")
	}
	if err := w.cw.Write(header); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	return nil
}

// Write encodes one trade
func (w *Writer) Write(t *models.Trade) error {
	record := encodeRow(w.cols, t, w.localized)
	if w.trailingID {
		record = append(record, t.OrderID)
	}
	if err := w.cw.Write(record); err != nil {
		return fmt.Errorf("failed to write trade: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

func encodeRow(cols layout, t *models.Trade, localized bool) []string {
	record := make([]string, len(cols))
	buy := t.Side == models.TradeTypeBuy
	shares := strconv.FormatInt(t.Shares, 10)
	for i, f := range cols {
		switch f {
		case fieldDate:
			record[i] = t.TradeDate.Format("2006/01/02")
		case fieldSide:
			record[i] = t.Side
			if localized {
				record[i] = localSides[t.Side]
			}
		case fieldInstrument:
			record[i] = t.Instrument
		case fieldName:
			record[i] = t.Name
		case fieldPrice:
			record[i] = t.Price.String()
		case fieldShares:
			record[i] = shares
		case fieldBuyPrice:
			if buy {
				record[i] = t.Price.String()
			}
		case fieldBuyShares:
			if buy {
				record[i] = shares
			}
		case fieldSellPrice:
			if !buy {
				record[i] = t.Price.String()
			}
		case fieldSellShares:
			if !buy {
				record[i] = shares
			}
		case fieldFee:
			if t.Fee.Valid {
				record[i] = t.Fee.Decimal.String()
			}
		case fieldTax:
			if t.Tax.Valid {
				record[i] = t.Tax.Decimal.String()
			}
		case fieldOrderID:
			record[i] = t.OrderID
		}
	}
	return record
}
