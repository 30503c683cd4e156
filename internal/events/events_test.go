package events

import "testing"

func TestNopPublisherDiscardsEvents(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.Publish(Event{Kind: KindSessionConnected, StationID: "CP-1"})
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
