// Package mission manages the onboard command queue.
package mission

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/missionfile"
	"github.com/tiiuae/uav_bridge/internal/types"
)

type Controller struct {
	session *link.Session
}

func New(session *link.Session) *Controller {
	return &Controller{session: session}
}

// Commands downloads the onboard queue.
func (c *Controller) Commands(ctx context.Context) ([]types.MissionCommand, error) {
	var cmds []types.MissionCommand
	err := c.session.Do(func(l link.VehicleLink) error {
		var err error
		cmds, err = l.DownloadCommands(ctx)
		return err
	})
	if err != nil {
		return nil, failure.Wrapf(err, "download commands")
	}
	if cmds == nil {
		cmds = []types.MissionCommand{}
	}
	return cmds, nil
}

// Insert appends a command to the queue. Takeoff and land replace the whole
// queue instead, since neither may share it with other commands.
func (c *Controller) Insert(ctx context.Context, kind string, lat, lon, alt float64) ([]types.MissionCommand, error) {
	k, err := types.ParseCommandKind(kind)
	if err != nil {
		return nil, failure.InvalidRequestf("%v", err)
	}
	if err := validPosition(lat, lon, alt); err != nil {
		return nil, err
	}
	cmd := types.NewMissionCommand(k, lat, lon, alt)

	var queue []types.MissionCommand
	err = c.session.Do(func(l link.VehicleLink) error {
		if k.Exclusive() {
			if err := l.ClearCommands(ctx); err != nil {
				return failure.Wrapf(err, "clear commands")
			}
		}
		current, err := l.DownloadCommands(ctx)
		if err != nil {
			return failure.Wrapf(err, "download commands")
		}
		queue = append(current, cmd)
		for i := range queue {
			queue[i].Seq = i
		}
		return failure.Wrapf(l.UploadCommands(ctx, queue), "upload commands")
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Inserted %s at %.6f,%.6f alt %.1f, queue has %d commands", k, lat, lon, alt, len(queue))
	return queue, nil
}

// Clear uploads an empty queue.
func (c *Controller) Clear(ctx context.Context) error {
	err := c.session.Do(func(l link.VehicleLink) error {
		return l.UploadCommands(ctx, []types.MissionCommand{})
	})
	return failure.Wrapf(err, "clear mission")
}

// JumpTo sets the autopilot's next-command pointer. The index is not checked
// against the queue length. It is the autopilot's raw mission seq: on
// ArduPilot seq 0 is home, so Commands()[i] is reached with JumpTo(i+1).
func (c *Controller) JumpTo(ctx context.Context, index int) error {
	if index < 0 {
		return failure.InvalidRequestf("command index %d is negative", index)
	}
	err := c.session.Do(func(l link.VehicleLink) error {
		return l.SetNextCommand(ctx, index)
	})
	return failure.Wrapf(err, "jump to command %d", index)
}

// SaveMission writes the onboard queue to path (.json or .mission).
func (c *Controller) SaveMission(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, failure.InvalidRequestf("mission path is empty")
	}
	cmds, err := c.Commands(ctx)
	if err != nil {
		return 0, err
	}
	if err := missionfile.WriteCommands(path, cmds); err != nil {
		return 0, failure.Wrapf(err, "save mission")
	}
	return len(cmds), nil
}

// LoadMission replaces the onboard queue with the one stored at path.
func (c *Controller) LoadMission(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, failure.InvalidRequestf("mission path is empty")
	}
	cmds, err := missionfile.ReadCommands(path)
	if err != nil {
		return 0, failure.Wrapf(err, "load mission")
	}
	for i, cmd := range cmds {
		if cmd.Kind == types.KindOther {
			continue
		}
		if err := validPosition(cmd.Latitude, cmd.Longitude, cmd.Altitude); err != nil {
			return 0, failure.Wrapf(err, "mission item %d", i)
		}
	}
	err = c.session.Do(func(l link.VehicleLink) error {
		return l.UploadCommands(ctx, cmds)
	})
	if err != nil {
		return 0, failure.Wrapf(err, "upload commands")
	}
	log.Printf("Loaded %d commands from %s", len(cmds), path)
	return len(cmds), nil
}

func validPosition(lat, lon, alt float64) error {
	for _, v := range []float64{lat, lon, alt} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return failure.InvalidRequestf("coordinates must be finite")
		}
	}
	if lat < -90 || lat > 90 {
		return failure.InvalidRequestf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return failure.InvalidRequestf("longitude %v out of range", lon)
	}
	return nil
}
