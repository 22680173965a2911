// Package params reads and writes autopilot parameters.
package params

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/link"
)

const DefaultSnapshot = "uav_params.json"

// Store reads through to the autopilot; nothing is cached locally.
type Store struct {
	session  *link.Session
	snapshot Snapshot
}

func New(session *link.Session, snapshot Snapshot) *Store {
	if snapshot == nil {
		snapshot = JSONFile{Path: DefaultSnapshot}
	}
	return &Store{session: session, snapshot: snapshot}
}

func (s *Store) Get(ctx context.Context, key string) (float64, error) {
	if key == "" {
		return 0, failure.InvalidRequestf("parameter name is empty")
	}
	var value float64
	err := s.session.Do(func(l link.VehicleLink) error {
		var err error
		value, err = l.Parameter(ctx, key)
		return err
	})
	if err != nil {
		return 0, failure.Wrapf(err, "get parameter %s", key)
	}
	return value, nil
}

func (s *Store) All(ctx context.Context) (map[string]float64, error) {
	var values map[string]float64
	err := s.session.Do(func(l link.VehicleLink) error {
		var err error
		values, err = l.Parameters(ctx)
		return err
	})
	if err != nil {
		return nil, failure.Wrapf(err, "get parameters")
	}
	return values, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	v, err := parse(key, value)
	if err != nil {
		return err
	}
	return s.write(ctx, map[string]float64{key: v})
}

// SetAll validates every entry before writing any of them, so a bad value
// leaves the whole batch unapplied. Writes go out in key order.
func (s *Store) SetAll(ctx context.Context, values map[string]string) error {
	parsed := make(map[string]float64, len(values))
	for key, value := range values {
		v, err := parse(key, value)
		if err != nil {
			return err
		}
		parsed[key] = v
	}
	return s.write(ctx, parsed)
}

func (s *Store) write(ctx context.Context, values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return s.session.Do(func(l link.VehicleLink) error {
		for _, k := range keys {
			if err := l.SetParameter(ctx, k, values[k]); err != nil {
				return failure.Wrapf(err, "set parameter %s", k)
			}
		}
		return nil
	})
}

// Save writes every parameter to the snapshot and returns how many there were.
func (s *Store) Save(ctx context.Context) (int, error) {
	values, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.snapshot.Write(values); err != nil {
		return 0, failure.Wrapf(err, "save parameters")
	}
	log.Printf("Saved %d parameters", len(values))
	return len(values), nil
}

// Load writes every parameter stored in the snapshot back to the autopilot.
func (s *Store) Load(ctx context.Context) (int, error) {
	values, err := s.snapshot.Read()
	if err != nil {
		return 0, failure.Wrapf(err, "load parameters")
	}
	for k, v := range values {
		if k == "" || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, failure.InvalidRequestf("snapshot entry %q=%v is not a valid parameter", k, v)
		}
	}
	if err := s.write(ctx, values); err != nil {
		return 0, err
	}
	log.Printf("Loaded %d parameters", len(values))
	return len(values), nil
}

func parse(key, value string) (float64, error) {
	if key == "" {
		return 0, failure.InvalidRequestf("parameter name is empty")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, failure.InvalidRequestf("parameter %s: %q is not a number", key, value)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, failure.InvalidRequestf("parameter %s: %q is not finite", key, value)
	}
	return v, nil
}
