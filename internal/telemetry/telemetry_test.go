package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/mqtttest"
	"github.com/tiiuae/uav_bridge/internal/types"
)

type fakeTracker struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeTracker) Update(ctx context.Context) (types.VehicleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return types.VehicleState{}, errors.New("link lost")
	}
	return types.VehicleState{Altitude: float64(f.calls), Mode: "AUTO"}, nil
}

func collect() (types.PostFn, func() []types.Message) {
	var (
		mu   sync.Mutex
		msgs []types.Message
	)
	post := func(m types.Message) {
		mu.Lock()
		msgs = append(msgs, m)
		mu.Unlock()
	}
	get := func() []types.Message {
		mu.Lock()
		defer mu.Unlock()
		return append([]types.Message(nil), msgs...)
	}
	return post, get
}

func TestPoller_PostsStates(t *testing.T) {
	tr := &fakeTracker{}
	post, got := collect()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		NewPoller(tr, "uav1", 5*time.Millisecond).Run(ctx, &wg, post)
	}()
	time.Sleep(60 * time.Millisecond)
	cancel()
	wg.Wait()

	msgs := got()
	if len(msgs) < 2 {
		t.Fatalf("posted %d states", len(msgs))
	}
	if msgs[0].MessageType != types.MessageVehicleState || msgs[0].From != "uav1" {
		t.Fatalf("message=%+v", msgs[0])
	}
}

func TestPoller_SkipsFailedUpdates(t *testing.T) {
	tr := &fakeTracker{fail: true}
	post, got := collect()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		NewPoller(tr, "uav1", 5*time.Millisecond).Run(ctx, &wg, post)
	}()
	time.Sleep(40 * time.Millisecond)
	cancel()
	wg.Wait()

	if n := len(got()); n != 0 {
		t.Fatalf("posted %d states while failing", n)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.calls < 2 {
		t.Fatalf("poller stopped polling after a failure")
	}
}

func TestPublisher_OnlyNewData(t *testing.T) {
	client := mqtttest.NewClient()
	p := NewPublisher(client, "uav1")
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx, &wg, func(types.Message) {})
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	time.Sleep(250 * time.Millisecond)
	if n := len(client.Published()); n != 0 {
		t.Fatalf("published %d messages without data", n)
	}

	p.Receive(types.CreateMessage(types.MessageVehicleState, "uav1", "*", types.VehicleState{
		Altitude: 42,
		Mode:     "RTL",
		Armed:    true,
	}))
	published := client.WaitPublished(1, time.Second)
	if len(published) != 1 {
		t.Fatalf("published %d messages", len(published))
	}
	if published[0].Topic != "/devices/uav1/events/telemetry" {
		t.Fatalf("topic=%s", published[0].Topic)
	}
	var msg struct {
		MessageID string
		Quick     struct {
			Altitude float64 `json:"altitude"`
		}
		Mode  string
		Armed bool
	}
	if err := json.Unmarshal(published[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.MessageID == "" || msg.Quick.Altitude != 42 || msg.Mode != "RTL" || !msg.Armed {
		t.Fatalf("telemetry=%s", published[0].Payload)
	}

	time.Sleep(250 * time.Millisecond)
	if n := len(client.Published()); n != 1 {
		t.Fatalf("republished stale data: %d messages", n)
	}
}
