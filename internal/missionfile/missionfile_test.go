package missionfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tiiuae/uav_bridge/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadWaypoints_FlightPathJSON(t *testing.T) {
	path := writeFile(t, "flightpath.json", `[{"lat":60.1,"lon":24.9,"alt":30},{"latitude":60.2,"longitude":25.0}]`)
	wps, err := ReadWaypoints(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []types.Waypoint{{Latitude: 60.1, Longitude: 24.9}, {Latitude: 60.2, Longitude: 25.0}}
	if len(wps) != len(want) || wps[0] != want[0] || wps[1] != want[1] {
		t.Fatalf("got %+v want %+v", wps, want)
	}
}

func TestReadWaypoints_JSONMissingCoordinates(t *testing.T) {
	path := writeFile(t, "bad.json", `[{"alt":30}]`)
	if _, err := ReadWaypoints(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadWaypoints_GPXPrefersTrack(t *testing.T) {
	path := writeFile(t, "route.gpx", `<?xml version="1.0"?>
<gpx version="1.1">
  <wpt lat="1" lon="1"/>
  <trk><trkseg>
    <trkpt lat="60.5" lon="24.5"/>
    <trkpt lat="60.6" lon="24.6"/>
  </trkseg></trk>
</gpx>`)
	wps, err := ReadWaypoints(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(wps) != 2 || wps[1].Latitude != 60.6 {
		t.Fatalf("got %+v", wps)
	}
}

func TestReadWaypoints_UnknownExtension(t *testing.T) {
	if _, err := ReadWaypoints("mission.kml"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCommands_MWPRoundTrip(t *testing.T) {
	cmds := []types.MissionCommand{
		types.NewMissionCommand(types.KindTakeoff, 0, 0, 20),
		types.NewMissionCommand(types.KindWaypoint, 60.123, 24.456, 50),
		types.NewMissionCommand(types.KindLand, 60.2, 24.5, 0),
	}
	path := filepath.Join(t.TempDir(), "saved.mission")
	if err := WriteCommands(path, cmds); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadCommands(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d commands", len(got))
	}
	if got[1].Kind != types.KindWaypoint || got[1].Command != types.CmdNavWaypoint || got[1].Latitude != 60.123 || got[1].Altitude != 50 {
		t.Fatalf("waypoint=%+v", got[1])
	}
	if got[2].Seq != 2 || got[2].Kind != types.KindLand {
		t.Fatalf("land=%+v", got[2])
	}
}

func TestWriteCommands_MWPRejectsOtherKinds(t *testing.T) {
	cmds := []types.MissionCommand{{Kind: types.KindOther, Command: 178}}
	path := filepath.Join(t.TempDir(), "saved.mission")
	if err := WriteCommands(path, cmds); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCommands_JSONKeepsRawCommand(t *testing.T) {
	cmds := []types.MissionCommand{{Kind: types.KindOther, Command: 178, Frame: 2, Params: [4]float64{1, 15, -1, 0}}}
	path := filepath.Join(t.TempDir(), "saved.json")
	if err := WriteCommands(path, cmds); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadCommands(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Command != 178 || got[0].Kind != types.KindOther || got[0].Params[1] != 15 {
		t.Fatalf("got %+v", got)
	}
}

func TestReadWaypoints_MWPSkipsItemsWithoutPosition(t *testing.T) {
	path := writeFile(t, "m.mission", `<?xml version="1.0"?>
<mission>
  <version value="2.3"/>
  <missionitem no="1" action="TAKEOFF" lat="0" lon="0" alt="20"/>
  <missionitem no="2" action="WAYPOINT" lat="60.1" lon="24.1" alt="50"/>
</mission>`)
	wps, err := ReadWaypoints(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(wps) != 1 || wps[0].Longitude != 24.1 {
		t.Fatalf("got %+v", wps)
	}
}
