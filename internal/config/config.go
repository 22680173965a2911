// Package config loads the bridge's YAML configuration.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tiiuae/uav_bridge/internal/cloud"
	"github.com/tiiuae/uav_bridge/internal/logging"
	"github.com/tiiuae/uav_bridge/internal/sim"
)

const (
	MissionFile = "file"
	MissionMQTT = "mqtt"
	MissionNone = "none"

	// SimAddress selects the built-in simulated vehicle.
	SimAddress = "sim"
)

type Config struct {
	DeviceID string         `yaml:"device_id"`
	Link     Link           `yaml:"link"`
	Mission  Mission        `yaml:"mission"`
	Params   Params         `yaml:"params"`
	Poll     Poll           `yaml:"poll"`
	MQTT     cloud.Config   `yaml:"mqtt"`
	Stream   Stream         `yaml:"stream"`
	Log      logging.Config `yaml:"log"`
	Sim      sim.Config     `yaml:"sim"`
}

type Link struct {
	Address  string        `yaml:"address"`
	Baud     int           `yaml:"baud"`
	SystemID int           `yaml:"system_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Mission struct {
	Source string        `yaml:"source"`
	Path   string        `yaml:"path"`
	Topic  string        `yaml:"topic"`
	Wait   time.Duration `yaml:"wait"`
}

type Params struct {
	Snapshot string `yaml:"snapshot"`
}

type Poll struct {
	Interval time.Duration `yaml:"interval"`
}

type Stream struct {
	Listen string `yaml:"listen"`
}

func Default() Config {
	return Config{
		Link: Link{
			Address:  "serial:/dev/ttyACM0",
			Baud:     115200,
			SystemID: 255,
			Timeout:  5 * time.Second,
		},
		Mission: Mission{Source: MissionNone, Wait: 2 * time.Second},
		Params:  Params{Snapshot: "uav_params.json"},
		Poll:    Poll{Interval: 200 * time.Millisecond},
		MQTT: cloud.Config{
			ProjectID:  "auto-fleet-mgnt",
			Region:     "europe-west1",
			RegistryID: "fleet-registry",
			Algorithm:  "RS256",
			PrivateKey: "/enclave/rsa_private.pem",
		},
		Log: logging.Config{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Sim: sim.Config{Lat: 60.1699, Lon: 24.9384, Speed: 15},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.WithMessagef(err, "parse %s", path)
		}
	case optional && os.IsNotExist(err):
	default:
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration after flags have been applied.
func (c *Config) Validate() error {
	if c.Link.Address == "" {
		return errors.New("link.address is required")
	}
	if c.Link.Baud <= 0 {
		return errors.New("link.baud must be positive")
	}
	if c.Link.SystemID < 1 || c.Link.SystemID > 255 {
		return errors.New("link.system_id must be within 1..255")
	}
	if c.Link.Timeout <= 0 {
		return errors.New("link.timeout must be positive")
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Params.Snapshot == "" {
		return errors.New("params.snapshot is required")
	}

	c.Mission.Source = strings.ToLower(c.Mission.Source)
	switch c.Mission.Source {
	case "", MissionNone:
		c.Mission.Source = MissionNone
	case MissionFile:
		if c.Mission.Path == "" {
			return errors.New("mission.path is required for a file mission source")
		}
	case MissionMQTT:
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required for an mqtt mission source")
		}
		if c.Mission.Topic == "" && c.DeviceID == "" {
			return errors.New("mission.topic or device_id is required for an mqtt mission source")
		}
	default:
		return errors.Errorf("unknown mission.source %q", c.Mission.Source)
	}

	if c.MQTT.Broker != "" {
		if c.DeviceID == "" {
			return errors.New("device_id is required when mqtt.broker is set")
		}
		switch c.MQTT.Algorithm {
		case "RS256", "ES256":
		default:
			return errors.Errorf("unknown mqtt.algorithm %q", c.MQTT.Algorithm)
		}
	}
	return nil
}

// MissionTopic is the route topic, by default the device's route config.
func (c *Config) MissionTopic() string {
	if c.Mission.Topic != "" {
		return c.Mission.Topic
	}
	return "/devices/" + c.DeviceID + "/config/route"
}

func (c *Config) Simulated() bool {
	return c.Link.Address == SimAddress
}
