package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTP_StatusLabels(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("example.test", "200"))
	beforeErr := testutil.ToFloat64(HTTPRequests.WithLabelValues("example.test", "error"))

	RecordHTTP("example.test", 200, time.Now())
	RecordHTTP("example.test", 0, time.Now())

	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("example.test", "200")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("example.test", "error")))
}

func TestImportRecords_Counter(t *testing.T) {
	ImportRecords.WithLabelValues("barcode", "succeeded").Inc()
	ImportRecords.WithLabelValues("barcode", "failed").Inc()

	assert.GreaterOrEqual(t, testutil.ToFloat64(ImportRecords.WithLabelValues("barcode", "succeeded")), float64(1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(ImportRecords.WithLabelValues("barcode", "failed")), float64(1))
}

func TestRecordImportDuration(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordImportDuration("name", time.Now().Add(-100*time.Millisecond))
	})
	assert.Equal(t, 1, testutil.CollectAndCount(ImportDuration, "gamemeta_import_duration_seconds"))
}
