package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/storage"
)

func testDataset() *storage.Dataset {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := cycles.Config{Start: start, End: start.Add(24 * time.Hour)}
	return storage.NewDataset("living_room", cfg, []cycles.TrainingExample{{DurationMinutes: 30}})
}

func TestDatasetCreated(t *testing.T) {
	ds := testDataset()
	ev := DatasetCreated(ds)

	assert.Equal(t, TypeDatasetCreated, ev.Type)
	assert.Equal(t, ds.ID, ev.DatasetID)
	assert.Equal(t, "living_room", ev.DeviceID)
	assert.Equal(t, 1, ev.ExampleCount)
	assert.Equal(t, ds.Start, ev.Start)
	assert.NotZero(t, ev.Timestamp)
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestMultiNotify(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("broker down")}

	err := Multi{ok, nil, failing}.Notify(context.Background(), DatasetDeleted("abc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1, "a failure does not stop delivery to others")
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(complete bool, err error) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(tok.done)
	}
	return tok
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	token    mqtt.Token
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	return p.token
}

func TestMQTTNotifier(t *testing.T) {
	tests := []struct {
		name    string
		token   *fakeToken
		timeout time.Duration
		wantErr error
	}{
		{name: "published", token: newFakeToken(true, nil), timeout: time.Second},
		{name: "broker error", token: newFakeToken(true, errors.New("not authorized")), timeout: time.Second, wantErr: errors.New("not authorized")},
		{name: "timeout", token: newFakeToken(false, nil), timeout: 10 * time.Millisecond, wantErr: ErrPublishTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{token: tt.token}
			n := NewMQTTNotifier(pub, "")
			n.timeout = tt.timeout

			ev := DatasetCreated(testDataset())
			err := n.Notify(context.Background(), ev)

			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
			case errors.Is(tt.wantErr, ErrPublishTimeout):
				assert.ErrorIs(t, err, ErrPublishTimeout)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}

			require.Len(t, pub.topics, 1)
			assert.Equal(t, "heatcycle/datasets/dataset_created", pub.topics[0])

			var got Event
			require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
			assert.Equal(t, ev.DatasetID, got.DatasetID)
		})
	}
}

func TestDialMQTTRequiresBroker(t *testing.T) {
	_, _, err := DialMQTT(MQTTConfig{})
	assert.Error(t, err)
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	assert.False(t, hub.HasClients())
	require.NoError(t, hub.Notify(ctx, DatasetDeleted("ignored")), "no clients is not an error")

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	ev := DatasetCreated(testDataset())
	require.NoError(t, hub.Notify(ctx, ev))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeDatasetCreated, got.Type)
	assert.Equal(t, ev.DatasetID, got.DatasetID)

	conn.Close()
	require.Eventually(t, func() bool { return !hub.HasClients() }, 2*time.Second, 10*time.Millisecond)
}
