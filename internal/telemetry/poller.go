// Package telemetry polls the vehicle on a schedule and publishes what it
// reads.
package telemetry

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/types"
)

// Updater is the part of the tracker the poller drives.
type Updater interface {
	Update(ctx context.Context) (types.VehicleState, error)
}

// Poller calls Update every interval and posts each new state on the bus.
// A failed update is logged and simply waits for the next tick.
type Poller struct {
	tracker  Updater
	deviceID string
	interval time.Duration
}

func NewPoller(tracker Updater, deviceID string, interval time.Duration) *Poller {
	return &Poller{tracker: tracker, deviceID: deviceID, interval: interval}
}

func (p *Poller) Receive(message types.Message) {
}

func (p *Poller) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := p.tracker.Update(ctx)
			if err != nil {
				// log once per outage
				if !failing {
					log.Errorf("Vehicle update failed: %v", err)
				}
				failing = true
				continue
			}
			if failing {
				log.Printf("Vehicle updates recovered")
				failing = false
			}
			post(types.CreateMessage(types.MessageVehicleState, p.deviceID, "*", state))
		}
	}
}
