package missionsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tiiuae/uav_bridge/internal/mqtttest"
	"github.com/tiiuae/uav_bridge/internal/types"
)

func TestNone(t *testing.T) {
	wps, err := None.FetchWaypoints(context.Background())
	if err != nil || len(wps) != 0 {
		t.Fatalf("got %v, %v", wps, err)
	}
}

func TestStaticCopies(t *testing.T) {
	src := Static([]types.Waypoint{{Latitude: 1, Longitude: 2}})
	wps, _ := src.FetchWaypoints(context.Background())
	wps[0].Latitude = 99
	again, _ := src.FetchWaypoints(context.Background())
	if again[0].Latitude != 1 {
		t.Fatalf("route was mutated through a fetched copy")
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flightpath.json")
	if err := os.WriteFile(path, []byte(`[{"lat":10,"lon":20},{"lat":10.00005,"lon":20.00003}]`), 0644); err != nil {
		t.Fatal(err)
	}
	wps, err := NewFile(path).FetchWaypoints(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(wps) != 2 || wps[1].Latitude != 10.00005 {
		t.Fatalf("got %+v", wps)
	}
}

func TestMQTT_WaitsForRoute(t *testing.T) {
	client := mqtttest.NewClient()
	src, err := NewMQTT(client, "/devices/uav1/config/route", time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		client.Deliver("/devices/uav1/config/route", []byte(`[{"latitude":60,"longitude":24}]`))
	}()
	wps, err := src.FetchWaypoints(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(wps) != 1 || wps[0].Longitude != 24 {
		t.Fatalf("got %+v", wps)
	}
}

func TestMQTT_TimesOut(t *testing.T) {
	client := mqtttest.NewClient()
	src, err := NewMQTT(client, "route", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	client.Deliver("route", []byte(`not json`))
	if _, err := src.FetchWaypoints(context.Background()); err == nil {
		t.Fatalf("expected timeout")
	}
}
