package csvstore

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elkingarcia11/market-data-api/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir(), Logger: &mockLogger{}})
	require.NoError(t, err)
	return s
}

func candleAt(ts int64, close float64) domain.Candle {
	return domain.Candle{
		Timestamp: ts,
		Datetime:  "2025-07-07 10:00:00 EDT",
		Open:      close - 0.5,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    100,
	}
}

func TestNew(t *testing.T) {
	t.Run("requires a logger", func(t *testing.T) {
		_, err := New(Config{DataDir: t.TempDir()})
		assert.Error(t, err)
	})

	t.Run("creates the data directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		_, err := New(Config{DataDir: dir, Logger: &mockLogger{}})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStore(t)
	series, err := s.Load(context.Background(), "SPY", 1)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestMergeAppend_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []domain.Candle{candleAt(1000, 10), candleAt(1060, 11), candleAt(1120, 12)}
	added, err := s.MergeAppend(ctx, "SPY", 1, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	loaded, err := s.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	assert.Equal(t, batch, loaded)
}

func TestMergeAppend_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []domain.Candle{candleAt(1000, 10), candleAt(1060, 11)}
	_, err := s.MergeAppend(ctx, "SPY", 1, batch)
	require.NoError(t, err)

	added, err := s.MergeAppend(ctx, "SPY", 1, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, added, "re-merging the same batch adds nothing")

	loaded, err := s.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestMergeAppend_ExistingRowsWin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	original := candleAt(1000, 10)
	_, err := s.MergeAppend(ctx, "SPY", 1, []domain.Candle{original})
	require.NoError(t, err)

	conflicting := candleAt(1000, 99) // same timestamp, different prices
	added, err := s.MergeAppend(ctx, "SPY", 1, []domain.Candle{conflicting, candleAt(1060, 11)})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	loaded, err := s.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, original, loaded[0], "first write wins on timestamp conflict")
}

func TestMergeAppend_OverlapOrderIndependent(t *testing.T) {
	ctx := context.Background()
	a := []domain.Candle{candleAt(1000, 10), candleAt(1060, 11)}
	b := []domain.Candle{candleAt(1060, 11), candleAt(1120, 12)}

	s1 := newTestStore(t)
	_, err := s1.MergeAppend(ctx, "SPY", 1, a)
	require.NoError(t, err)
	_, err = s1.MergeAppend(ctx, "SPY", 1, b)
	require.NoError(t, err)

	s2 := newTestStore(t)
	_, err = s2.MergeAppend(ctx, "SPY", 1, b)
	require.NoError(t, err)
	_, err = s2.MergeAppend(ctx, "SPY", 1, a)
	require.NoError(t, err)

	got1, err := s1.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	got2, err := s2.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	assert.Equal(t, got1, got2)
	assert.Len(t, got1, 3)
}

func TestMergeAppend_SortsUnorderedBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MergeAppend(ctx, "SPY", 1, []domain.Candle{
		candleAt(1120, 12), candleAt(1000, 10), candleAt(1060, 11),
	})
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i := 1; i < len(loaded); i++ {
		assert.Less(t, loaded[i-1].Timestamp, loaded[i].Timestamp)
	}
}

func TestFileLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{DataDir: dir, Logger: &mockLogger{}})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.MergeAppend(ctx, "AAPL", 5, []domain.Candle{candleAt(1000, 10)})
	require.NoError(t, err)

	path := filepath.Join(dir, "5m", "AAPL.csv")
	f, err := os.Open(path)
	require.NoError(t, err, "series lives at {dataDir}/{timeframe}m/{symbol}.csv")
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"timestamp", "datetime", "open", "high", "low", "close", "volume"}, records[0])
	assert.Equal(t, "1000", records[1][0])
	assert.Equal(t, "2025-07-07 10:00:00 EDT", records[1][1])
}

func TestReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MergeAppend(ctx, "SPY", 1, []domain.Candle{candleAt(1000, 10), candleAt(1060, 11)})
	require.NoError(t, err)

	replacement := []domain.Candle{candleAt(2060, 21), candleAt(2000, 20)}
	require.NoError(t, s.Replace(ctx, "SPY", 1, replacement))

	loaded, err := s.Load(ctx, "SPY", 1)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(2000), loaded[0].Timestamp, "replace rewrites the series sorted")
	assert.Equal(t, int64(2060), loaded[1].Timestamp)
}

func TestLoad_MalformedRow(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{DataDir: dir, Logger: &mockLogger{}})
	require.NoError(t, err)

	path := filepath.Join(dir, "1m")
	require.NoError(t, os.MkdirAll(path, 0755))
	content := "timestamp,datetime,open,high,low,close,volume\nnot-a-number,x,1,1,1,1,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(path, "SPY.csv"), []byte(content), 0644))

	_, err = s.Load(context.Background(), "SPY", 1)
	assert.Error(t, err)
}
