package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/elkingarcia11/market-data-api/internal/domain"
	"github.com/elkingarcia11/market-data-api/internal/ports"
)

// header is the first row of every series file.
var header = []string{"timestamp", "datetime", "open", "high", "low", "close", "volume"}

// Store implements ports.SeriesStore on one CSV file per
// (symbol, timeframe), at data/{timeframe}m/{symbol}.csv. Rows are sorted
// ascending by timestamp with no duplicates; the file is the canonical
// backing store and is never deleted by this system.
type Store struct {
	dataDir string
	logger  ports.Logger
}

// Config holds configuration for the CSV series store.
type Config struct {
	DataDir string // defaults to "./data"
	Logger  ports.Logger
}

// New creates a new CSV series store.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV series store")
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %q: %w: %w", dataDir, ports.ErrStorage, err)
	}
	return &Store{dataDir: dataDir, logger: cfg.Logger}, nil
}

func (s *Store) path(symbol string, timeframeMinutes int) string {
	return filepath.Join(s.dataDir, domain.TimeframeKey(timeframeMinutes), symbol+".csv")
}

// Load reads the persisted series, returning an empty slice if no file
// exists yet for the pair.
func (s *Store) Load(ctx context.Context, symbol string, timeframeMinutes int) ([]domain.Candle, error) {
	path := s.path(symbol, timeframeMinutes)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Candle{}, nil
		}
		return nil, fmt.Errorf("opening series file %q: %w: %w", path, ports.ErrStorage, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading series file %q: %w: %w", path, ports.ErrStorage, err)
	}
	if len(records) == 0 {
		return []domain.Candle{}, nil
	}

	series := make([]domain.Candle, 0, len(records)-1)
	for i, rec := range records[1:] { // skip header
		c, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("parsing row %d of %q: %w: %w", i+2, path, ports.ErrStorage, err)
		}
		series = append(series, c)
	}
	return series, nil
}

// MergeAppend unions a new batch into the existing series keyed by
// timestamp. Existing rows win on conflict — a timestamp already present is
// never overwritten — so merging the same or overlapping batches in any
// order converges on the same file. Returns the number of rows added.
func (s *Store) MergeAppend(ctx context.Context, symbol string, timeframeMinutes int, batch []domain.Candle) (int, error) {
	existing, err := s.Load(ctx, symbol, timeframeMinutes)
	if err != nil {
		return 0, err
	}

	byTimestamp := make(map[int64]domain.Candle, len(existing)+len(batch))
	for _, c := range existing {
		byTimestamp[c.Timestamp] = c
	}
	added := 0
	for _, c := range batch {
		if _, ok := byTimestamp[c.Timestamp]; ok {
			continue // first write wins
		}
		byTimestamp[c.Timestamp] = c
		added++
	}
	if added == 0 {
		s.logger.Debug(ctx, "Merge added no new rows", map[string]interface{}{
			"symbol":    symbol,
			"timeframe": domain.TimeframeKey(timeframeMinutes),
		})
		return 0, nil
	}

	merged := make([]domain.Candle, 0, len(byTimestamp))
	for _, c := range byTimestamp {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })

	if err := s.write(symbol, timeframeMinutes, merged); err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "Series merged", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": domain.TimeframeKey(timeframeMinutes),
		"added":     added,
		"total":     len(merged),
	})
	return added, nil
}

// Replace rewrites the whole series from scratch, sorted by timestamp.
func (s *Store) Replace(ctx context.Context, symbol string, timeframeMinutes int, series []domain.Candle) error {
	sorted := make([]domain.Candle, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	if err := s.write(symbol, timeframeMinutes, sorted); err != nil {
		return err
	}
	s.logger.Info(ctx, "Series replaced", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": domain.TimeframeKey(timeframeMinutes),
		"rows":      len(sorted),
	})
	return nil
}

// write persists a sorted series atomically: temp file in the target
// directory, then rename, so a crash mid-write never truncates the
// canonical file.
func (s *Store) write(symbol string, timeframeMinutes int, series []domain.Candle) error {
	path := s.path(symbol, timeframeMinutes)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating timeframe directory %q: %w: %w", dir, ports.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp series file in %q: %w: %w", dir, ports.ErrStorage, err)
	}
	tmpName := tmp.Name()

	writer := csv.NewWriter(tmp)
	writer.Write(header)
	for _, c := range series {
		writer.Write([]string{
			strconv.FormatInt(c.Timestamp, 10),
			c.Datetime,
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatInt(c.Volume, 10),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing series rows to %q: %w: %w", tmpName, ports.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp series file %q: %w: %w", tmpName, ports.ErrStorage, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing series file %q: %w: %w", path, ports.ErrStorage, err)
	}
	return nil
}

func parseRow(rec []string) (domain.Candle, error) {
	if len(rec) != len(header) {
		return domain.Candle{}, fmt.Errorf("expected %d columns, got %d", len(header), len(rec))
	}
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing timestamp %q: %w", rec[0], err)
	}
	open, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open %q: %w", rec[2], err)
	}
	high, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high %q: %w", rec[3], err)
	}
	low, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low %q: %w", rec[4], err)
	}
	cls, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close %q: %w", rec[5], err)
	}
	vol, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing volume %q: %w", rec[6], err)
	}
	return domain.Candle{
		Timestamp: ts,
		Datetime:  rec[1],
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
