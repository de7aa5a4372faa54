package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iliyamo/live-event-booking/internal/queue"
)

func TestAsyncPublisherDrainsOnClose(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewAsyncPublisher(rec, 16, zerolog.Nop())
	for i := 0; i < 10; i++ {
		if err := p.Publish(context.Background(), queue.BookingConfirmedQueue, queue.BookingConfirmedEvent{EventID: uint64(i)}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	p.Close()
	if n := rec.count(queue.BookingConfirmedQueue); n != 10 {
		t.Fatalf("expected 10 delivered messages, got %d", n)
	}
}

func TestNopPublisher(t *testing.T) {
	if err := NopPublisher().Publish(context.Background(), queue.TicketCancelledQueue, nil); err != nil {
		t.Fatalf("NopPublisher returned %v", err)
	}
}
