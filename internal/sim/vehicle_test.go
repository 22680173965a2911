package sim

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/types"
)

func connected(t *testing.T) *Vehicle {
	t.Helper()
	v := New(Config{Lat: 60.0, Lon: 24.0, Alt: 0, Speed: 20})
	if err := v.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return v
}

func TestVehicle_RequiresConnection(t *testing.T) {
	v := New(Config{})
	if _, err := v.ReadTelemetry(context.Background()); err == nil {
		t.Fatalf("expected error before Connect")
	}
}

func TestVehicle_SetModeUnknown(t *testing.T) {
	v := connected(t)
	err := v.SetMode(context.Background(), "WARP")
	if errors.Cause(err) != link.ErrUnknownMode {
		t.Fatalf("err=%v want ErrUnknownMode", err)
	}
	if err := v.SetMode(context.Background(), "AUTO"); err != nil {
		t.Fatalf("set AUTO: %v", err)
	}
	mode, _ := v.Mode(context.Background())
	if mode != "AUTO" {
		t.Fatalf("mode=%s", mode)
	}
}

func TestVehicle_ArmDeniedWhenNotArmable(t *testing.T) {
	v := connected(t)
	v.SetArmable(false)
	if err := v.SetArmed(context.Background(), true); err == nil {
		t.Fatalf("expected arming to be denied")
	}
	armed, _ := v.Armed(context.Background())
	if armed {
		t.Fatalf("vehicle armed while not armable")
	}
}

func TestVehicle_FailNextIsOneShot(t *testing.T) {
	v := connected(t)
	v.FailNext(errors.New("boom"))
	if _, err := v.Mode(context.Background()); err == nil {
		t.Fatalf("expected injected failure")
	}
	if _, err := v.Mode(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
}

func TestVehicle_UploadRenumbers(t *testing.T) {
	v := connected(t)
	cmds := []types.MissionCommand{
		types.NewMissionCommand(types.KindWaypoint, 60.001, 24.0, 50),
		types.NewMissionCommand(types.KindLand, 60.002, 24.0, 0),
	}
	cmds[0].Seq, cmds[1].Seq = 7, 9
	if err := v.UploadCommands(context.Background(), cmds); err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, _ := v.DownloadCommands(context.Background())
	if len(got) != 2 || got[0].Seq != 0 || got[1].Seq != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestVehicle_StepFliesTowardWaypoint(t *testing.T) {
	ctx := context.Background()
	v := connected(t)
	_ = v.UploadCommands(ctx, []types.MissionCommand{
		types.NewMissionCommand(types.KindWaypoint, 60.01, 24.0, 0),
	})
	_ = v.SetMode(ctx, "AUTO")
	_ = v.SetArmed(ctx, true)

	before, _ := v.ReadTelemetry(ctx)
	v.Step(1)
	after, _ := v.ReadTelemetry(ctx)
	if after.Latitude <= before.Latitude {
		t.Fatalf("lat did not increase: %v -> %v", before.Latitude, after.Latitude)
	}
	if after.GroundSpeed != 20 {
		t.Fatalf("ground speed=%v", after.GroundSpeed)
	}
}

func TestVehicle_StepIdleWhenDisarmed(t *testing.T) {
	ctx := context.Background()
	v := connected(t)
	_ = v.UploadCommands(ctx, []types.MissionCommand{
		types.NewMissionCommand(types.KindWaypoint, 60.01, 24.0, 0),
	})
	_ = v.SetMode(ctx, "AUTO")
	v.Step(1)
	tm, _ := v.ReadTelemetry(ctx)
	if tm.Latitude != 60.0 {
		t.Fatalf("moved while disarmed: %v", tm.Latitude)
	}
}

func TestVehicle_CallsRecorded(t *testing.T) {
	v := connected(t)
	v.ResetCalls()
	_, _ = v.Armed(context.Background())
	_ = v.ClearCommands(context.Background())
	calls := v.Calls()
	if len(calls) != 2 || calls[0] != "Armed" || calls[1] != "ClearCommands" {
		t.Fatalf("calls=%v", calls)
	}
}
