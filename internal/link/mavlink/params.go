package mavlink

import (
	"context"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/pkg/errors"
)

func (l *Link) Parameter(ctx context.Context, key string) (float64, error) {
	system, component := l.targetIDs()
	reply, err := l.request(ctx, &ardupilotmega.MessageParamRequestRead{
		TargetSystem:    system,
		TargetComponent: component,
		ParamId:         key,
		ParamIndex:      -1,
	}, matchParam(key))
	if err != nil {
		return 0, errors.WithMessagef(err, "read parameter %s", key)
	}
	return float64(reply.(*ardupilotmega.MessageParamValue).ParamValue), nil
}

// SetParameter waits for the autopilot to echo the new value back.
func (l *Link) SetParameter(ctx context.Context, key string, value float64) error {
	system, component := l.targetIDs()
	_, err := l.request(ctx, &ardupilotmega.MessageParamSet{
		TargetSystem:    system,
		TargetComponent: component,
		ParamId:         key,
		ParamValue:      float32(value),
		ParamType:       ardupilotmega.MAV_PARAM_TYPE_REAL32,
	}, matchParam(key))
	return errors.WithMessagef(err, "write parameter %s", key)
}

// Parameters fetches the full table with PARAM_REQUEST_LIST, then asks for
// any index that went missing one by one.
func (l *Link) Parameters(ctx context.Context) (map[string]float64, error) {
	system, component := l.targetIDs()
	w := l.subscribe(func(m message.Message) bool {
		_, ok := m.(*ardupilotmega.MessageParamValue)
		return ok
	})
	defer l.unsubscribe(w)

	if err := l.send(&ardupilotmega.MessageParamRequestList{
		TargetSystem:    system,
		TargetComponent: component,
	}); err != nil {
		return nil, err
	}

	values := make(map[string]float64)
	seen := make(map[uint16]bool)
	total := -1
	for pass := 0; pass < attempts; {
		reply, err := l.await(ctx, w, l.cfg.Timeout/attempts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			pass++
			if total < 0 {
				if err := l.send(&ardupilotmega.MessageParamRequestList{
					TargetSystem:    system,
					TargetComponent: component,
				}); err != nil {
					return nil, err
				}
				continue
			}
			for i := 0; i < total; i++ {
				if !seen[uint16(i)] {
					_ = l.send(&ardupilotmega.MessageParamRequestRead{
						TargetSystem:    system,
						TargetComponent: component,
						ParamIndex:      int16(i),
					})
				}
			}
			continue
		}
		p := reply.(*ardupilotmega.MessageParamValue)
		total = int(p.ParamCount)
		if p.ParamIndex != 0xffff {
			seen[p.ParamIndex] = true
		}
		values[p.ParamId] = float64(p.ParamValue)
		if len(seen) >= total {
			return values, nil
		}
	}
	if total < 0 {
		return nil, errors.New("no parameters received")
	}
	return nil, errors.Errorf("received %d of %d parameters", len(seen), total)
}

func matchParam(key string) func(message.Message) bool {
	return func(m message.Message) bool {
		p, ok := m.(*ardupilotmega.MessageParamValue)
		return ok && p.ParamId == key
	}
}
