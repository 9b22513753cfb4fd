package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBytes(t *testing.T) {
	before := testutil.ToFloat64(bytesTotal.WithLabelValues(DirectionSent))
	RecordBytes(DirectionSent, 1500)
	after := testutil.ToFloat64(bytesTotal.WithLabelValues(DirectionSent))

	if after-before != 1500 {
		t.Errorf("bytes delta = %v, want 1500", after-before)
	}
}

func TestRecordFileAndBroadcast(t *testing.T) {
	files := testutil.ToFloat64(filesTotal.WithLabelValues(DirectionReceived))
	casts := testutil.ToFloat64(discoveryBroadcastsTotal)

	RecordFile(DirectionReceived)
	RecordBroadcast()
	RecordBroadcast()

	if got := testutil.ToFloat64(filesTotal.WithLabelValues(DirectionReceived)) - files; got != 1 {
		t.Errorf("files delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(discoveryBroadcastsTotal) - casts; got != 2 {
		t.Errorf("broadcast delta = %v, want 2", got)
	}
}

func TestObserveTransfer(t *testing.T) {
	ObserveTransfer(RoleSender, 250*time.Millisecond)
	RecordError(RoleReceiver)

	if n := testutil.CollectAndCount(transferDuration); n == 0 {
		t.Error("no transfer duration series collected")
	}
	if got := testutil.ToFloat64(transferErrorsTotal.WithLabelValues(RoleReceiver)); got < 1 {
		t.Errorf("errors = %v, want >= 1", got)
	}
}
