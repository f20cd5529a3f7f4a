package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// FileStore keeps the trade ledger in a single CSV file. Writes only ever
// append rows.
type FileStore struct {
	path   string
	reader *Reader
	log    zerolog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a store backed by the ledger file at path. The file
// is created on first write.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		reader: NewReader(log),
		log:    log.With().Str("component", "ledger").Str("path", path).Logger(),
	}
}

// Path returns the ledger file location
func (s *FileStore) Path() string {
	return s.path
}

// load reads the whole ledger. A missing file is an empty ledger.
func (s *FileStore) load() ([]*models.Trade, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	trades, rowErrs, err := s.reader.ReadTrades(f)
	if err != nil {
		return nil, err
	}
	if len(rowErrs) > 0 {
		s.log.Warn().Int("skipped_rows", len(rowErrs)).Msg("Ledger contains unreadable rows")
	}
	return trades, nil
}

// CreateTrade appends a trade to the ledger
func (s *FileStore) CreateTrade(t *models.Trade) error {
	return s.CreateTrades([]*models.Trade{t})
}

// CreateTrades appends trades to the ledger in one write
func (s *FileStore) CreateTrades(trades []*models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	header, err := s.header()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger for writing: %w", err)
	}
	defer f.Close()

	if err := terminateLastLine(f); err != nil {
		return err
	}

	w, err := NewWriter(f, header)
	if err != nil {
		return err
	}
	if header == nil {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}

	now := time.Now()
	nextID := len(existing) + 1
	for _, t := range trades {
		if err := w.Write(t); err != nil {
			return err
		}
		t.ID = nextID
		t.CreatedAt = now
		nextID++
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	return nil
}

// terminateLastLine adds a newline to a non-empty file that lacks one, so
// appended rows never merge into the last row
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat ledger: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	return nil
}

// header returns the existing header row, or nil for an empty ledger
func (s *FileStore) header() ([]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}
	return header, nil
}

// GetTradesByInstrument returns the trades of one instrument, oldest first
func (s *FileStore) GetTradesByInstrument(instrument string) ([]*models.Trade, error) {
	all, err := s.GetAllTrades()
	if err != nil {
		return nil, err
	}
	var trades []*models.Trade
	for _, t := range all {
		if t.Instrument == instrument {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

// GetAllTrades returns every trade, oldest first
func (s *FileStore) GetAllTrades() ([]*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].TradeDate.Before(trades[j].TradeDate)
	})
	return trades, nil
}

// ListInstruments returns the distinct instruments in the ledger
func (s *FileStore) ListInstruments() ([]*models.Instrument, error) {
	trades, err := s.GetAllTrades()
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]*models.Instrument)
	for _, t := range trades {
		inst, ok := byCode[t.Instrument]
		if !ok {
			inst = &models.Instrument{Code: t.Instrument}
			byCode[t.Instrument] = inst
		}
		if inst.Name == "" {
			inst.Name = t.Name
		}
		inst.Trades++
	}

	instruments := make([]*models.Instrument, 0, len(byCode))
	for _, inst := range byCode {
		instruments = append(instruments, inst)
	}
	sort.Slice(instruments, func(i, j int) bool {
		return instruments[i].Code < instruments[j].Code
	})
	return instruments, nil
}

// TradeExistsByOrderID checks whether an order id was already recorded.
// Ledger files do not keep the source, so only the order id is compared.
func (s *FileStore) TradeExistsByOrderID(orderID, source string) (bool, error) {
	trades, err := s.GetAllTrades()
	if err != nil {
		return false, err
	}
	for _, t := range trades {
		if t.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}
