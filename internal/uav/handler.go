// Package uav is the single entry point a dispatcher calls. Every method
// returns either its result or one *failure.Error.
package uav

import (
	"context"

	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/mission"
	"github.com/tiiuae/uav_bridge/internal/missionsource"
	"github.com/tiiuae/uav_bridge/internal/params"
	"github.com/tiiuae/uav_bridge/internal/safety"
	"github.com/tiiuae/uav_bridge/internal/tracker"
	"github.com/tiiuae/uav_bridge/internal/types"
)

type Handler struct {
	session *link.Session
	tracker *tracker.Tracker
	mission *mission.Controller
	safety  *safety.Gate
	params  *params.Store
}

// New wires every component onto one shared link session.
func New(l link.VehicleLink, source missionsource.Source, snapshot params.Snapshot) *Handler {
	session := link.NewSession(l)
	return &Handler{
		session: session,
		tracker: tracker.New(session, source),
		mission: mission.New(session),
		safety:  safety.New(session),
		params:  params.New(session, snapshot),
	}
}

func (h *Handler) Tracker() *tracker.Tracker {
	return h.tracker
}

// Close releases the link.
func (h *Handler) Close() error {
	return h.session.Do(func(l link.VehicleLink) error {
		return l.Close()
	})
}

func (h *Handler) Connect(ctx context.Context) error {
	return h.tracker.Connect(ctx)
}

func (h *Handler) Update(ctx context.Context) (types.VehicleState, error) {
	return h.tracker.Update(ctx)
}

func (h *Handler) Quick(ctx context.Context) (types.QuickView, error) {
	return h.tracker.Quick(ctx)
}

func (h *Handler) Stats(ctx context.Context) (types.Stats, error) {
	return h.tracker.Stats(ctx)
}

func (h *Handler) SetFlightMode(ctx context.Context, name string) error {
	return h.safety.SetFlightMode(ctx, name)
}

func (h *Handler) FlightMode(ctx context.Context) (types.FlightMode, error) {
	return h.safety.FlightMode(ctx)
}

func (h *Handler) Param(ctx context.Context, key string) (float64, error) {
	return h.params.Get(ctx, key)
}

func (h *Handler) Params(ctx context.Context) (map[string]float64, error) {
	return h.params.All(ctx)
}

func (h *Handler) SetParam(ctx context.Context, key, value string) error {
	return h.params.Set(ctx, key, value)
}

func (h *Handler) SetParams(ctx context.Context, values map[string]string) error {
	return h.params.SetAll(ctx, values)
}

func (h *Handler) SaveParams(ctx context.Context) (int, error) {
	return h.params.Save(ctx)
}

func (h *Handler) LoadParams(ctx context.Context) (int, error) {
	return h.params.Load(ctx)
}

func (h *Handler) Commands(ctx context.Context) ([]types.MissionCommand, error) {
	return h.mission.Commands(ctx)
}

func (h *Handler) InsertCommand(ctx context.Context, kind string, lat, lon, alt float64) ([]types.MissionCommand, error) {
	return h.mission.Insert(ctx, kind, lat, lon, alt)
}

func (h *Handler) JumpToCommand(ctx context.Context, index int) error {
	return h.mission.JumpTo(ctx, index)
}

func (h *Handler) ClearMission(ctx context.Context) error {
	return h.mission.Clear(ctx)
}

func (h *Handler) LoadMission(ctx context.Context, path string) (int, error) {
	return h.mission.LoadMission(ctx, path)
}

func (h *Handler) SaveMission(ctx context.Context, path string) (int, error) {
	return h.mission.SaveMission(ctx, path)
}

func (h *Handler) Armed(ctx context.Context) (bool, error) {
	return h.safety.Armed(ctx)
}

func (h *Handler) Arm(ctx context.Context) error {
	return h.safety.Arm(ctx)
}

func (h *Handler) Disarm(ctx context.Context) error {
	return h.safety.Disarm(ctx)
}
