package mavlink

import (
	"context"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/types"
)

// SetMode sends SET_MODE and returns without waiting for the vehicle to
// switch; the new mode shows up in a later heartbeat.
func (l *Link) SetMode(ctx context.Context, mode types.FlightMode) error {
	c, err := l.snapshot()
	if err != nil {
		return err
	}
	custom, ok := link.ModeNumber(c.class(), mode)
	if !ok {
		return errors.Wrapf(link.ErrUnknownMode, "%s", mode)
	}
	system, _ := l.targetIDs()
	return l.send(&ardupilotmega.MessageSetMode{
		TargetSystem: system,
		BaseMode:     ardupilotmega.MAV_MODE(ardupilotmega.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED),
		CustomMode:   custom,
	})
}

func (l *Link) SetArmed(ctx context.Context, armed bool) error {
	var param1 float32
	if armed {
		param1 = 1
	}
	system, component := l.targetIDs()
	reply, err := l.request(ctx, &ardupilotmega.MessageCommandLong{
		TargetSystem:    system,
		TargetComponent: component,
		Command:         common.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:          param1,
	}, func(m message.Message) bool {
		ack, ok := m.(*ardupilotmega.MessageCommandAck)
		return ok && ack.Command == common.MAV_CMD_COMPONENT_ARM_DISARM
	})
	if err != nil {
		return errors.WithMessage(err, "arm/disarm")
	}
	if ack := reply.(*ardupilotmega.MessageCommandAck); ack.Result != ardupilotmega.MAV_RESULT_ACCEPTED {
		return errors.Errorf("arm/disarm rejected: result %d", ack.Result)
	}
	return nil
}
