package remotenet

import (
	"testing"
	"time"
)

func TestSessionReportsMetricsOnSendAndReceive(t *testing.T) {
	client, server := loopbackConnPair(t)
	defer client.Close()
	defer server.Close()

	senderMetrics := NewDefaultMetrics()
	receiverMetrics := NewDefaultMetrics()

	sender := newTestSession(client, jsonCodec{}).withMetrics(senderMetrics)
	receiver := newTestSession(server, jsonCodec{}).withMetrics(receiverMetrics)

	if err := sender.SendMessage(map[string]any{"a": float64(1)}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := receiver.ReceiveMessage(2 * time.Second); err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}

	if got := senderMetrics.GetMessagesSent(); got != 1 {
		t.Fatalf("sender GetMessagesSent() = %d, want 1", got)
	}
	if got := senderMetrics.GetBytesSent(); got <= 0 {
		t.Fatalf("sender GetBytesSent() = %d, want > 0", got)
	}
	if got := receiverMetrics.GetMessagesReceived(); got != 1 {
		t.Fatalf("receiver GetMessagesReceived() = %d, want 1", got)
	}
	if got := receiverMetrics.GetBytesReceived(); got <= 0 {
		t.Fatalf("receiver GetBytesReceived() = %d, want > 0", got)
	}
}

func TestDefaultMetricsConcurrentIncrements(t *testing.T) {
	m := NewDefaultMetrics()
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.IncrementMessagesSent()
				m.IncrementBytesSent(1)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	if got := m.GetMessagesSent(); got != 1000 {
		t.Fatalf("GetMessagesSent() = %d, want 1000", got)
	}
	if got := m.GetBytesSent(); got != 1000 {
		t.Fatalf("GetBytesSent() = %d, want 1000", got)
	}
}
