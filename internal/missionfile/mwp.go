package missionfile

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/tiiuae/uav_bridge/internal/types"
)

func readMWP(data []byte) ([]types.MissionCommand, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.WithMessage(err, "parse mission xml")
	}

	var cmds []types.MissionCommand
	for _, root := range doc.ChildElements() {
		if !strings.EqualFold(root.Tag, "MISSION") {
			continue
		}
		for _, el := range root.ChildElements() {
			if !strings.EqualFold(el.Tag, "MISSIONITEM") {
				continue
			}
			action := el.SelectAttrValue("action", "WAYPOINT")
			kind, err := types.ParseCommandKind(strings.ToUpper(action))
			if err != nil {
				return nil, errors.WithMessagef(err, "mission item %s", el.SelectAttrValue("no", "?"))
			}
			lat, _ := strconv.ParseFloat(el.SelectAttrValue("lat", "0"), 64)
			lon, _ := strconv.ParseFloat(el.SelectAttrValue("lon", "0"), 64)
			alt, _ := strconv.ParseFloat(el.SelectAttrValue("alt", "0"), 64)

			c := types.NewMissionCommand(kind, lat, lon, alt)
			for i, name := range []string{"parameter1", "parameter2", "parameter3"} {
				c.Params[i], _ = strconv.ParseFloat(el.SelectAttrValue(name, "0"), 64)
			}
			c.Seq = len(cmds)
			cmds = append(cmds, c)
		}
	}
	return cmds, nil
}

func writeMWP(cmds []types.MissionCommand) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	x := doc.CreateElement("mission")
	x.CreateElement("version").CreateAttr("value", "uav_bridge")
	for i, c := range cmds {
		if c.Kind == types.KindOther {
			return nil, errors.Errorf("mission item %d (command %d) has no MWP action", i, c.Command)
		}
		xi := x.CreateElement("missionitem")
		xi.CreateAttr("no", strconv.Itoa(i+1))
		xi.CreateAttr("action", c.Kind.String())
		xi.CreateAttr("lat", strconv.FormatFloat(c.Latitude, 'g', -1, 64))
		xi.CreateAttr("lon", strconv.FormatFloat(c.Longitude, 'g', -1, 64))
		xi.CreateAttr("alt", strconv.FormatFloat(c.Altitude, 'g', -1, 64))
		xi.CreateAttr("parameter1", strconv.FormatFloat(c.Params[0], 'g', -1, 64))
		xi.CreateAttr("parameter2", strconv.FormatFloat(c.Params[1], 'g', -1, 64))
		xi.CreateAttr("parameter3", strconv.FormatFloat(c.Params[2], 'g', -1, 64))
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}
