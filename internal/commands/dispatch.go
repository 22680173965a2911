package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/uav"
)

// Request is a control command as received on the commands topic.
type Request struct {
	ID        string          `json:"id"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type Reply struct {
	ID      string      `json:"id"`
	Command string      `json:"command"`
	Result  interface{} `json:"result,omitempty"`
	Error   *ReplyError `json:"error,omitempty"`
}

type ReplyError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Dispatcher maps control commands onto the vehicle handler.
type Dispatcher struct {
	handler *uav.Handler
}

func NewDispatcher(handler *uav.Handler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

// Decode parses a control command. Commands without an id still get a reply.
func Decode(data []byte) (Request, error) {
	var cmd Request
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, failure.InvalidRequestf("malformed command: %v", err)
	}
	if cmd.Command == "" {
		return cmd, failure.InvalidRequestf("command name is missing")
	}
	return cmd, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd Request) Reply {
	reply := Reply{ID: cmd.ID, Command: cmd.Command}
	result, err := d.run(ctx, strings.ToLower(cmd.Command), cmd.Payload)
	if err != nil {
		reply.Error = &ReplyError{Kind: failure.KindOf(err).String(), Message: err.Error()}
		return reply
	}
	reply.Result = result
	return reply
}

const ok = "ok"

func (d *Dispatcher) run(ctx context.Context, name string, payload json.RawMessage) (interface{}, error) {
	h := d.handler
	switch name {
	case "connect":
		return ok, h.Connect(ctx)
	case "update":
		return h.Update(ctx)
	case "quick":
		return h.Quick(ctx)
	case "stats":
		return h.Stats(ctx)

	case "set_flight_mode":
		var p struct {
			Mode string `json:"mode"`
		}
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return ok, h.SetFlightMode(ctx, p.Mode)
	case "get_flight_mode":
		mode, err := h.FlightMode(ctx)
		return map[string]interface{}{"mode": mode}, err

	case "get_param":
		var p struct {
			Key string `json:"key"`
		}
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		value, err := h.Param(ctx, p.Key)
		return map[string]interface{}{"key": p.Key, "value": value}, err
	case "get_params":
		return h.Params(ctx)
	case "set_param":
		var p struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return ok, h.SetParam(ctx, p.Key, rawValue(p.Value))
	case "set_params":
		var p map[string]json.RawMessage
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		values := make(map[string]string, len(p))
		for k, v := range p {
			values[k] = rawValue(v)
		}
		return ok, h.SetParams(ctx, values)
	case "save_params":
		n, err := h.SaveParams(ctx)
		return map[string]interface{}{"count": n}, err
	case "load_params":
		n, err := h.LoadParams(ctx)
		return map[string]interface{}{"count": n}, err

	case "get_commands":
		return h.Commands(ctx)
	case "insert_command":
		var p struct {
			Kind string  `json:"kind"`
			Lat  float64 `json:"lat"`
			Lon  float64 `json:"lon"`
			Alt  float64 `json:"alt"`
		}
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return h.InsertCommand(ctx, p.Kind, p.Lat, p.Lon, p.Alt)
	case "jump_to_command":
		var p struct {
			Index *int `json:"index"`
		}
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, failure.InvalidRequestf("index is missing")
		}
		return ok, h.JumpToCommand(ctx, *p.Index)
	case "clear_mission":
		return ok, h.ClearMission(ctx)
	case "load_mission", "save_mission":
		var p struct {
			Path string `json:"path"`
		}
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		var (
			n   int
			err error
		)
		if name == "load_mission" {
			n, err = h.LoadMission(ctx, p.Path)
		} else {
			n, err = h.SaveMission(ctx, p.Path)
		}
		return map[string]interface{}{"count": n}, err

	case "get_armed":
		armed, err := h.Armed(ctx)
		return map[string]interface{}{"armed": armed}, err
	case "arm":
		return ok, h.Arm(ctx)
	case "disarm":
		return ok, h.Disarm(ctx)
	}
	return nil, failure.InvalidRequestf("unknown command %q", name)
}

func decodePayload(payload json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return failure.InvalidRequestf("malformed payload: %v", err)
	}
	return nil
}

// rawValue turns a JSON string or number into its text, so "12" and 12 both
// reach the parameter store as "12".
func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
