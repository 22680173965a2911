// Package missionfile reads and writes mission and route files: JSON flight
// paths, GPX tracks/routes/waypoints and MWP XML missions.
package missionfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/types"
)

type format int

const (
	formatJSON format = iota
	formatGPX
	formatMWP
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".gpx":
		return formatGPX, nil
	case ".mission", ".xml":
		return formatMWP, nil
	}
	return 0, errors.Errorf("unsupported mission file %q", path)
}

// point accepts both the flight path spelling (lat/lon/alt) and the data
// service spelling (latitude/longitude).
type point struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Alt       float64  `json:"alt"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p point) waypoint() (types.Waypoint, bool) {
	switch {
	case p.Lat != nil && p.Lon != nil:
		return types.Waypoint{Latitude: *p.Lat, Longitude: *p.Lon}, true
	case p.Latitude != nil && p.Longitude != nil:
		return types.Waypoint{Latitude: *p.Latitude, Longitude: *p.Longitude}, true
	}
	return types.Waypoint{}, false
}

// ReadWaypoints loads the route of a mission file in any supported format.
func ReadWaypoints(path string) ([]types.Waypoint, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch f {
	case formatGPX:
		return readGPX(data)
	case formatMWP:
		cmds, err := readMWP(data)
		if err != nil {
			return nil, err
		}
		var wps []types.Waypoint
		for _, c := range cmds {
			if c.Latitude != 0 || c.Longitude != 0 {
				wps = append(wps, types.Waypoint{Latitude: c.Latitude, Longitude: c.Longitude})
			}
		}
		return wps, nil
	}

	wps, err := DecodeWaypoints(data)
	return wps, errors.WithMessagef(err, "parse %s", path)
}

// DecodeWaypoints parses a JSON array of points.
func DecodeWaypoints(data []byte) ([]types.Waypoint, error) {
	var points []point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	wps := make([]types.Waypoint, 0, len(points))
	for i, p := range points {
		wp, ok := p.waypoint()
		if !ok {
			return nil, errors.Errorf("point %d has no coordinates", i)
		}
		wps = append(wps, wp)
	}
	return wps, nil
}

func readGPX(data []byte) ([]types.Waypoint, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.WithMessage(err, "parse gpx")
	}
	root := doc.SelectElement("gpx")
	if root == nil {
		return nil, errors.New("not a gpx document")
	}
	// The first kind present wins: a track, else a route, else waypoints.
	for _, path := range []string{"//trkpt", "//rtept", "//wpt"} {
		pts := root.FindElements(path)
		if len(pts) == 0 {
			continue
		}
		wps := make([]types.Waypoint, 0, len(pts))
		for _, pt := range pts {
			lat, err := strconv.ParseFloat(pt.SelectAttrValue("lat", ""), 64)
			if err != nil {
				return nil, errors.Errorf("gpx point without lat: %v", err)
			}
			lon, err := strconv.ParseFloat(pt.SelectAttrValue("lon", ""), 64)
			if err != nil {
				return nil, errors.Errorf("gpx point without lon: %v", err)
			}
			wps = append(wps, types.Waypoint{Latitude: lat, Longitude: lon})
		}
		return wps, nil
	}
	return nil, nil
}

// ReadCommands loads a saved mission queue.
func ReadCommands(path string) ([]types.MissionCommand, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch f {
	case formatMWP:
		return readMWP(data)
	case formatGPX:
		wps, err := readGPX(data)
		if err != nil {
			return nil, err
		}
		cmds := make([]types.MissionCommand, len(wps))
		for i, wp := range wps {
			cmds[i] = types.NewMissionCommand(types.KindWaypoint, wp.Latitude, wp.Longitude, 0)
			cmds[i].Seq = i
		}
		return cmds, nil
	}

	var cmds []types.MissionCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, errors.WithMessagef(err, "parse %s", path)
	}
	for i := range cmds {
		cmds[i].Seq = i
	}
	return cmds, nil
}

// WriteCommands saves a mission queue as JSON or MWP XML.
func WriteCommands(path string, cmds []types.MissionCommand) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch f {
	case formatJSON:
		if cmds == nil {
			cmds = []types.MissionCommand{}
		}
		data, err = json.MarshalIndent(cmds, "", "  ")
	case formatMWP:
		data, err = writeMWP(cmds)
	default:
		err = errors.Errorf("cannot write missions as %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
