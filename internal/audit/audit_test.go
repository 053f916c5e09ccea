package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/models"
)

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	ctx := context.Background()

	require.NoError(t, l.RecordTransaction(ctx, &models.Transaction{
		ID: "tx1", AccountID: "acc", Currency: models.USD,
		Amount: decimal.NewFromInt(100), Category: models.Deposit(),
	}))
	require.NoError(t, l.RecordTransition(ctx, &models.Trade{ID: "t1", AccountID: "acc", Status: models.StatusFunded}, models.StatusNew))

	var events []Event
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e)
	}
	require.Len(t, events, 2)

	assert.Equal(t, EventTransaction, events[0].EventType)
	assert.Equal(t, "deposit", events[0].Details["category"])
	assert.Equal(t, EventTransition, events[1].EventType)
	assert.Equal(t, "new", events[1].Details["from"])
	assert.Equal(t, "funded", events[1].Details["to"])
	assert.Equal(t, events[0].SessionID, events[1].SessionID)
}

func TestNewLogger_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	l, err := NewLogger(Config{LogDir: dir, MaxSize: 1})
	require.NoError(t, err)

	require.NoError(t, l.RecordDeletion(context.Background(), "acc", "tx1"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "TRANSACTION_DELETED")
}
