package retention

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{ segmentID uint64 }

func (f fakeSource) SegmentID() uint64 { return f.segmentID }

func TestDisabledSchedulerIsNoop(t *testing.T) {
	dir := t.TempDir()
	s, err := Start(context.Background(), Config{Enabled: false}, fakeSource{}, dir)
	require.NoError(t, err)
	s.Stop()

	_, err = os.Stat(filepath.Join(dir, "retention"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunOnceWritesAuditRecord(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Enabled: true, Cron: "0 2 * * *", KeepSegments: 3}
	s, err := Start(context.Background(), cfg, fakeSource{segmentID: 10}, dir)
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.RunOnce())

	data, err := os.ReadFile(filepath.Join(dir, "retention", "retention.log"))
	require.NoError(t, err)

	var rec record
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &rec))
	assert.Equal(t, uint64(10), rec.CurrentSegment)
	assert.Equal(t, uint64(8), rec.KeptFrom)
}

func TestInvalidCronRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := Start(context.Background(), Config{Enabled: true, Cron: "not a cron"}, fakeSource{}, dir)
	assert.Error(t, err)
}
