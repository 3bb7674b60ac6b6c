package amqp

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	applog "carsales/internal/log"
)

type fakeAck struct {
	acked    int
	nacked   int
	requeued bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.acked++
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	f.requeued = requeue
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

func loadedBody(t *testing.T) []byte {
	t.Helper()
	body, err := NewDatasetLoadedMessage(NewRunID(), "car_sales.csv", "sqlite", 3).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestDispatch(t *testing.T) {
	failing := errors.New("aggregation failed")

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		wantAck     bool
		wantRequeue bool
		wantHandled bool
	}{
		{name: "success acks", wantAck: true, wantHandled: true},
		{name: "handler failure requeues once", handlerErr: failing, wantRequeue: true, wantHandled: true},
		{name: "handler failure on redelivery drops", handlerErr: failing, redelivered: true, wantHandled: true},
		{name: "malformed body drops", body: []byte(`{"run_id": 5}`)},
		{name: "missing run id drops", body: []byte(`{"rows": 5}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			body := tt.body
			if body == nil {
				body = loadedBody(t)
			}
			d := amqp091.Delivery{Acknowledger: ack, Body: body, Redelivered: tt.redelivered, RoutingKey: RoutingDatasetLoaded}

			handled := false
			handle := func(ctx context.Context, b []byte) (string, error) {
				msg, err := DatasetLoadedMessageFromJSON(b)
				if err != nil {
					return "", errMalformed{err}
				}
				handled = true
				return msg.RunID, tt.handlerErr
			}
			dispatch(context.Background(), testLogger(), d, handle)

			if handled != tt.wantHandled {
				t.Errorf("handled = %v, want %v", handled, tt.wantHandled)
			}
			if tt.wantAck {
				if ack.acked != 1 || ack.nacked != 0 {
					t.Errorf("acked=%d nacked=%d, want ack", ack.acked, ack.nacked)
				}
				return
			}
			if ack.nacked != 1 {
				t.Fatalf("nacked = %d, want 1", ack.nacked)
			}
			if ack.requeued != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}
}

func TestDatasetLoadedMessage_JSON(t *testing.T) {
	msg := NewDatasetLoadedMessage(NewRunID(), "car_sales.csv", "mysql", 23906)
	if _, err := uuid.Parse(msg.RunID); err != nil {
		t.Fatalf("run id %q is not a UUID: %v", msg.RunID, err)
	}
	if time.Since(msg.Timestamp) > time.Minute {
		t.Error("timestamp should be recent")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := DatasetLoadedMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.RunID != msg.RunID || parsed.Rows != 23906 || parsed.Driver != "mysql" {
		t.Errorf("parsed = %+v", parsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("timestamp %v != %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestAggregatesRefreshedMessage_JSON(t *testing.T) {
	msg := NewAggregatesRefreshedMessage("run-2", "run-1", "data/aggregates.json.sz", 21, 100)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := AggregatesRefreshedMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.TriggeredBy != "run-1" || parsed.Tables != 21 || parsed.BundlePath != msg.BundlePath {
		t.Errorf("parsed = %+v", parsed)
	}

	if _, err := AggregatesRefreshedMessageFromJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	c := &Client{exchangeName: "carsales", logger: testLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishDatasetLoaded(ctx, NewDatasetLoadedMessage("run", "x.csv", "sqlite", 1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("PublishDatasetLoaded() error = %v, want context.Canceled", err)
	}
}
