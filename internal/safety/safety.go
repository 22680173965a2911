// Package safety gates the vehicle's arming state and flight mode.
package safety

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/types"
)

type Gate struct {
	session *link.Session
}

func New(session *link.Session) *Gate {
	return &Gate{session: session}
}

func (g *Gate) Armed(ctx context.Context) (bool, error) {
	var armed bool
	err := g.session.Do(func(l link.VehicleLink) error {
		var err error
		armed, err = l.Armed(ctx)
		return err
	})
	if err != nil {
		return false, failure.Wrapf(err, "read armed state")
	}
	return armed, nil
}

// Arm checks the autopilot's pre-arm state and arms in the same session, so
// nothing else can talk to the vehicle between the check and the command.
func (g *Gate) Arm(ctx context.Context) error {
	err := g.session.Do(func(l link.VehicleLink) error {
		armable, err := l.IsArmable(ctx)
		if err != nil {
			return failure.Wrapf(err, "check armable")
		}
		if !armable {
			return failure.InvalidStatef("vehicle is not armable")
		}
		return failure.Wrapf(l.SetArmed(ctx, true), "arm")
	})
	if err != nil {
		return err
	}
	log.Printf("Vehicle armed")
	return nil
}

func (g *Gate) Disarm(ctx context.Context) error {
	err := g.session.Do(func(l link.VehicleLink) error {
		return l.SetArmed(ctx, false)
	})
	if err != nil {
		return failure.Wrapf(err, "disarm")
	}
	log.Printf("Vehicle disarmed")
	return nil
}

func (g *Gate) FlightMode(ctx context.Context) (types.FlightMode, error) {
	var mode types.FlightMode
	err := g.session.Do(func(l link.VehicleLink) error {
		var err error
		mode, err = l.Mode(ctx)
		return err
	})
	if err != nil {
		return "", failure.Wrapf(err, "read flight mode")
	}
	return mode, nil
}

// SetFlightMode requests a mode change and returns without waiting for the
// vehicle to enter it.
func (g *Gate) SetFlightMode(ctx context.Context, name string) error {
	mode := types.FlightMode(strings.ToUpper(strings.TrimSpace(name)))
	if mode == "" {
		return failure.InvalidRequestf("flight mode is empty")
	}
	err := g.session.Do(func(l link.VehicleLink) error {
		return l.SetMode(ctx, mode)
	})
	if errors.Is(err, link.ErrUnknownMode) {
		return failure.InvalidRequestf("unknown flight mode %q", mode)
	}
	if err != nil {
		return failure.Wrapf(err, "set flight mode %s", mode)
	}
	log.Printf("Requested flight mode %s", mode)
	return nil
}
