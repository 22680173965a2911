package mission

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/sim"
	"github.com/tiiuae/uav_bridge/internal/types"
)

func newController(t *testing.T, existing int) (*Controller, *sim.Vehicle) {
	t.Helper()
	ctx := context.Background()
	v := sim.New(sim.Config{})
	if err := v.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	var cmds []types.MissionCommand
	for i := 0; i < existing; i++ {
		cmds = append(cmds, types.NewMissionCommand(types.KindWaypoint, float64(i), float64(i), 50))
	}
	if err := v.UploadCommands(ctx, cmds); err != nil {
		t.Fatal(err)
	}
	v.ResetCalls()
	return New(link.NewSession(v)), v
}

func TestInsert_ExclusiveKindsReplaceQueue(t *testing.T) {
	for _, kind := range []string{"TAKEOFF", "LAND"} {
		c, _ := newController(t, 3)
		queue, err := c.Insert(context.Background(), kind, 0, 0, 10)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		got, _ := c.Commands(context.Background())
		if len(got) != 1 || len(queue) != 1 {
			t.Fatalf("%s: queue=%+v", kind, got)
		}
		want, _ := types.ParseCommandKind(kind)
		if got[0].Kind != want || got[0].Altitude != 10 || got[0].Frame != types.FrameGlobalRelativeAlt {
			t.Fatalf("%s: command=%+v", kind, got[0])
		}
	}
}

func TestInsert_WaypointAppends(t *testing.T) {
	c, _ := newController(t, 2)
	if _, err := c.Insert(context.Background(), "WAYPOINT", 60.1, 24.1, 80); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := c.Commands(context.Background())
	if len(got) != 3 {
		t.Fatalf("len=%d want 3", len(got))
	}
	if got[2].Kind != types.KindWaypoint || got[2].Latitude != 60.1 || got[2].Seq != 2 {
		t.Fatalf("appended=%+v", got[2])
	}
	if got[0].Latitude != 0 || got[1].Latitude != 1 {
		t.Fatalf("existing commands changed: %+v", got)
	}
}

func TestInsert_GeofenceAppends(t *testing.T) {
	c, _ := newController(t, 1)
	if _, err := c.Insert(context.Background(), "GEOFENCE", 1, 2, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := c.Commands(context.Background())
	if len(got) != 2 || got[1].Command != types.CmdNavFencePolygonInclusion {
		t.Fatalf("got %+v", got)
	}
}

func TestInsert_InvalidRequestTouchesNothing(t *testing.T) {
	tests := []struct {
		kind          string
		lat, lon, alt float64
	}{
		{"BOGUS", 0, 0, 0},
		{"", 0, 0, 0},
		{"takeoff", 0, 0, 0},
		{" LAND ", 0, 0, 0},
		{"WAYPOINT", math.NaN(), 0, 0},
		{"WAYPOINT", 0, math.Inf(1), 0},
		{"LAND", 91, 0, 0},
		{"TAKEOFF", 0, -181, 0},
	}
	for _, tt := range tests {
		c, v := newController(t, 2)
		_, err := c.Insert(context.Background(), tt.kind, tt.lat, tt.lon, tt.alt)
		if failure.KindOf(err) != failure.InvalidRequest {
			t.Fatalf("%+v: kind=%v", tt, failure.KindOf(err))
		}
		if calls := v.Calls(); len(calls) != 0 {
			t.Fatalf("%+v: link called: %v", tt, calls)
		}
	}
}

func TestInsert_UploadFailureIsGeneral(t *testing.T) {
	c, v := newController(t, 1)
	// Fail the upload, after the download succeeded.
	wrapped := &failingUpload{Vehicle: v}
	c = New(link.NewSession(wrapped))
	_, err := c.Insert(context.Background(), "WAYPOINT", 1, 1, 1)
	if failure.KindOf(err) != failure.General {
		t.Fatalf("kind=%v", failure.KindOf(err))
	}
	got, _ := v.DownloadCommands(context.Background())
	if len(got) != 1 {
		t.Fatalf("queue changed after failed upload: %+v", got)
	}
}

type failingUpload struct {
	*sim.Vehicle
}

func (f *failingUpload) UploadCommands(context.Context, []types.MissionCommand) error {
	return errors.New("MAV_MISSION_ERROR")
}

func TestClear(t *testing.T) {
	c, _ := newController(t, 4)
	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err := c.Commands(context.Background())
	if err != nil || len(got) != 0 || got == nil {
		t.Fatalf("got %#v, %v", got, err)
	}
}

func TestJumpTo(t *testing.T) {
	c, v := newController(t, 2)
	if err := c.JumpTo(context.Background(), 7); err != nil {
		t.Fatalf("jump past end: %v", err)
	}
	if calls := v.Calls(); len(calls) != 1 || calls[0] != "SetNextCommand" {
		t.Fatalf("calls=%v", calls)
	}
	v.ResetCalls()
	if err := c.JumpTo(context.Background(), -1); failure.KindOf(err) != failure.InvalidRequest {
		t.Fatalf("negative index: %v", err)
	}
	if len(v.Calls()) != 0 {
		t.Fatalf("link called for a negative index")
	}
}

func TestJumpTo_SeqOverflowIsGeneral(t *testing.T) {
	c, v := newController(t, 2)
	if err := c.JumpTo(context.Background(), 1); err != nil {
		t.Fatalf("jump: %v", err)
	}
	for _, index := range []int{65536, 70000} {
		if err := c.JumpTo(context.Background(), index); failure.KindOf(err) != failure.General {
			t.Fatalf("index %d: err=%v", index, err)
		}
		if got := v.NextCommand(); got != 1 {
			t.Fatalf("index %d moved the pointer to %d", index, got)
		}
	}
	if err := c.JumpTo(context.Background(), 65535); err != nil {
		t.Fatalf("largest seq: %v", err)
	}
}

func TestSaveLoadMission(t *testing.T) {
	ctx := context.Background()
	c, v := newController(t, 3)
	path := filepath.Join(t.TempDir(), "mission.json")
	n, err := c.SaveMission(ctx, path)
	if err != nil || n != 3 {
		t.Fatalf("save: %d, %v", n, err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	n, err = c.LoadMission(ctx, path)
	if err != nil || n != 3 {
		t.Fatalf("load: %d, %v", n, err)
	}
	got, _ := v.DownloadCommands(ctx)
	if len(got) != 3 || got[2].Latitude != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadMission_MissingFile(t *testing.T) {
	c, v := newController(t, 1)
	_, err := c.LoadMission(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	if failure.KindOf(err) != failure.General {
		t.Fatalf("kind=%v", failure.KindOf(err))
	}
	if len(v.Calls()) != 0 {
		t.Fatalf("link called: %v", v.Calls())
	}
}
