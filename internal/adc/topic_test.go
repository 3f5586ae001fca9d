package adc

import (
	"testing"
	"time"
)

func TestTopicLatestWinsWhenSubscriberLagsBehind(t *testing.T) {
	topic := NewTopic()
	sub := topic.Subscribe()

	base := time.Now()
	topic.Publish(LightReading{Instant: base, Reading: 1})
	topic.Publish(LightReading{Instant: base.Add(time.Microsecond), Reading: 2})

	select {
	case r := <-sub.C:
		if r.Reading != 2 {
			t.Fatalf("got reading %d, want latest (2)", r.Reading)
		}
	default:
		t.Fatal("expected a reading to be available")
	}
	select {
	case r := <-sub.C:
		t.Fatalf("unexpected second reading %+v; mailbox should hold only the latest", r)
	default:
	}
}

func TestTopicFansOutToAllSubscribers(t *testing.T) {
	topic := NewTopic()
	a := topic.Subscribe()
	b := topic.Subscribe()

	topic.Publish(LightReading{Reading: 42})

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case r := <-sub.C:
			if r.Reading != 42 {
				t.Fatalf("subscriber %s got %d, want 42", name, r.Reading)
			}
		default:
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestTopicUnsubscribeStopsDelivery(t *testing.T) {
	topic := NewTopic()
	sub := topic.Subscribe()
	topic.Unsubscribe(sub)

	topic.Publish(LightReading{Reading: 1})

	select {
	case r := <-sub.C:
		t.Fatalf("unsubscribed subscriber received %+v", r)
	default:
	}
}
