package mavlink

import (
	"context"
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/types"
)

// ArduPilot keeps the home position as mission item 0. It is hidden from the
// queue the bridge exposes and put back in front on upload.
func (l *Link) hidesHome() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.autopilot == ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA
}

func (l *Link) DownloadCommands(ctx context.Context) ([]types.MissionCommand, error) {
	system, component := l.targetIDs()
	reply, err := l.request(ctx, &ardupilotmega.MessageMissionRequestList{
		TargetSystem:    system,
		TargetComponent: component,
	}, func(m message.Message) bool {
		_, ok := m.(*ardupilotmega.MessageMissionCount)
		return ok
	})
	if err != nil {
		return nil, errors.WithMessage(err, "mission count")
	}
	count := int(reply.(*ardupilotmega.MessageMissionCount).Count)

	items := make([]*ardupilotmega.MessageMissionItemInt, 0, count)
	for seq := 0; seq < count; seq++ {
		s := uint16(seq)
		reply, err := l.request(ctx, &ardupilotmega.MessageMissionRequestInt{
			TargetSystem:    system,
			TargetComponent: component,
			Seq:             s,
		}, func(m message.Message) bool {
			item, ok := m.(*ardupilotmega.MessageMissionItemInt)
			return ok && item.Seq == s
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "mission item %d", seq)
		}
		items = append(items, reply.(*ardupilotmega.MessageMissionItemInt))
	}
	_ = l.send(&ardupilotmega.MessageMissionAck{
		TargetSystem:    system,
		TargetComponent: component,
		Type:            ardupilotmega.MAV_MISSION_ACCEPTED,
	})

	if l.hidesHome() && len(items) > 0 {
		l.mu.Lock()
		l.home = items[0]
		l.mu.Unlock()
		items = items[1:]
	}
	cmds := make([]types.MissionCommand, len(items))
	for i, item := range items {
		cmds[i] = fromItem(item)
		cmds[i].Seq = i
	}
	return cmds, nil
}

// UploadCommands replaces the whole onboard mission. The autopilot pulls
// each item with MISSION_REQUEST(_INT) and finishes with MISSION_ACK.
func (l *Link) UploadCommands(ctx context.Context, cmds []types.MissionCommand) error {
	if len(cmds) == 0 {
		return l.ClearCommands(ctx)
	}
	system, component := l.targetIDs()

	items := make([]*ardupilotmega.MessageMissionItemInt, 0, len(cmds)+1)
	if l.hidesHome() {
		items = append(items, l.homeItem())
	}
	for _, c := range cmds {
		items = append(items, toItem(c))
	}
	for i, item := range items {
		item.TargetSystem = system
		item.TargetComponent = component
		item.Seq = uint16(i)
	}

	w := l.subscribe(func(m message.Message) bool {
		switch m.(type) {
		case *ardupilotmega.MessageMissionRequestInt,
			*ardupilotmega.MessageMissionRequest,
			*ardupilotmega.MessageMissionAck:
			return true
		}
		return false
	})
	defer l.unsubscribe(w)

	count := &ardupilotmega.MessageMissionCount{
		TargetSystem:    system,
		TargetComponent: component,
		Count:           uint16(len(items)),
	}
	if err := l.send(count); err != nil {
		return err
	}

	interval := l.cfg.Timeout / attempts
	started := false
	misses := 0
	for {
		reply, err := l.await(ctx, w, interval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			misses++
			if misses >= attempts {
				return errors.New("mission upload timed out")
			}
			if !started {
				if err := l.send(count); err != nil {
					return err
				}
			}
			continue
		}
		misses = 0

		var seq uint16
		switch m := reply.(type) {
		case *ardupilotmega.MessageMissionAck:
			if m.Type != ardupilotmega.MAV_MISSION_ACCEPTED {
				return errors.Errorf("mission upload rejected: result %d", m.Type)
			}
			if !started {
				// stale ack from an earlier transaction
				continue
			}
			return nil
		case *ardupilotmega.MessageMissionRequestInt:
			seq = m.Seq
		case *ardupilotmega.MessageMissionRequest:
			seq = m.Seq
		}
		if int(seq) >= len(items) {
			return errors.Errorf("autopilot requested item %d of %d", seq, len(items))
		}
		started = true
		if err := l.send(items[seq]); err != nil {
			return err
		}
	}
}

func (l *Link) ClearCommands(ctx context.Context) error {
	system, component := l.targetIDs()
	reply, err := l.request(ctx, &ardupilotmega.MessageMissionClearAll{
		TargetSystem:    system,
		TargetComponent: component,
	}, func(m message.Message) bool {
		_, ok := m.(*ardupilotmega.MessageMissionAck)
		return ok
	})
	if err != nil {
		return errors.WithMessage(err, "clear mission")
	}
	if ack := reply.(*ardupilotmega.MessageMissionAck); ack.Type != ardupilotmega.MAV_MISSION_ACCEPTED {
		return errors.Errorf("clear mission rejected: result %d", ack.Type)
	}
	return nil
}

// SetNextCommand writes the raw mission sequence number, home included.
// Indexes that do not fit the 16-bit seq field are refused.
func (l *Link) SetNextCommand(ctx context.Context, index int) error {
	if index < 0 || index > math.MaxUint16 {
		return errors.Errorf("mission item %d out of range", index)
	}
	system, component := l.targetIDs()
	s := uint16(index)
	_, err := l.request(ctx, &ardupilotmega.MessageMissionSetCurrent{
		TargetSystem:    system,
		TargetComponent: component,
		Seq:             s,
	}, func(m message.Message) bool {
		cur, ok := m.(*ardupilotmega.MessageMissionCurrent)
		return ok && cur.Seq == s
	})
	return errors.WithMessagef(err, "set current mission item %d", index)
}

func (l *Link) homeItem() *ardupilotmega.MessageMissionItemInt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.home != nil {
		h := *l.home
		return &h
	}
	return &ardupilotmega.MessageMissionItemInt{
		Frame:        ardupilotmega.MAV_FRAME_GLOBAL,
		Command:      common.MAV_CMD_NAV_WAYPOINT,
		Autocontinue: 1,
		X:            degE7(l.cache.lat),
		Y:            degE7(l.cache.lon),
	}
}

// degE7 converts degrees to the wire's 1e-7 degree integers.
func degE7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}

func toItem(c types.MissionCommand) *ardupilotmega.MessageMissionItemInt {
	var auto uint8
	if c.Autocontinue {
		auto = 1
	}
	command := c.Command
	if command == 0 {
		command = c.Kind.Command()
	}
	return &ardupilotmega.MessageMissionItemInt{
		Frame:        ardupilotmega.MAV_FRAME(c.Frame),
		Command:      common.MAV_CMD(command),
		Autocontinue: auto,
		Param1:       float32(c.Params[0]),
		Param2:       float32(c.Params[1]),
		Param3:       float32(c.Params[2]),
		Param4:       float32(c.Params[3]),
		X:            degE7(c.Latitude),
		Y:            degE7(c.Longitude),
		Z:            float32(c.Altitude),
	}
}

func fromItem(item *ardupilotmega.MessageMissionItemInt) types.MissionCommand {
	command := uint16(item.Command)
	return types.MissionCommand{
		Seq:          int(item.Seq),
		Kind:         types.KindForCommand(command),
		Command:      command,
		Frame:        uint8(item.Frame),
		Params:       [4]float64{float64(item.Param1), float64(item.Param2), float64(item.Param3), float64(item.Param4)},
		Latitude:     float64(item.X) / 1e7,
		Longitude:    float64(item.Y) / 1e7,
		Altitude:     float64(item.Z),
		Autocontinue: item.Autocontinue != 0,
	}
}
