package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	c := NewCollector()
	c.RecordOperation("trade", true, "", 120*time.Millisecond)
	c.RecordOperation("trade", false, "validation", time.Millisecond)
	c.RecordOperation("trade", false, "validation", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("trade", "success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("trade", "failed", "validation")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.operationDuration))
}

func TestRecordRPC(t *testing.T) {
	c := NewCollector()
	c.RecordRPC("getAccountInfo", 3*time.Millisecond, nil)
	c.RecordRPC("sendTransaction", 9*time.Millisecond, errors.New("blockhash not found"))

	assert.Equal(t, 2, testutil.CollectAndCount(c.rpcLatency))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rpcErrors.WithLabelValues("sendTransaction")))

	c.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(c.rpcLatency))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordOperation("trade", true, "", time.Second)
		c.RecordRPC("getBalance", time.Second, nil)
		c.Reset()
	})
	assert.NoError(t, c.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.RecordOperation("settle", true, "", time.Millisecond)
	assert.Equal(t, 0, testutil.CollectAndCount(b.operations))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RecordOperation("init-pool", true, "", 50*time.Millisecond)

	path := filepath.Join(t.TempDir(), "bettingpool.prom")
	require.NoError(t, c.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `bettingpool_operations_total{kind="",operation="init-pool",status="success"} 1`)
}
