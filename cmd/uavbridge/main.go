package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tiiuae/uav_bridge/internal/cloud"
	"github.com/tiiuae/uav_bridge/internal/commands"
	"github.com/tiiuae/uav_bridge/internal/config"
	"github.com/tiiuae/uav_bridge/internal/link"
	"github.com/tiiuae/uav_bridge/internal/link/mavlink"
	"github.com/tiiuae/uav_bridge/internal/logging"
	"github.com/tiiuae/uav_bridge/internal/missionsource"
	"github.com/tiiuae/uav_bridge/internal/params"
	"github.com/tiiuae/uav_bridge/internal/sim"
	"github.com/tiiuae/uav_bridge/internal/stream"
	"github.com/tiiuae/uav_bridge/internal/telemetry"
	"github.com/tiiuae/uav_bridge/internal/types"
	"github.com/tiiuae/uav_bridge/internal/uav"
)

const simStep = 100 * time.Millisecond

var (
	defaultFlagSet    = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath        = defaultFlagSet.String("config", "./uavbridge.yaml", "Path to the YAML configuration")
	deviceID          = defaultFlagSet.String("device_id", "", "The provisioned device id")
	mqttBrokerAddress = defaultFlagSet.String("mqtt_broker", "", "MQTT broker protocol, address and port")
	privateKeyPath    = defaultFlagSet.String("private_key", "", "The private key for the MQTT authentication")
	linkAddress       = defaultFlagSet.String("link", "", "Vehicle link address (serial:, udp:, udpclient:, tcp: or sim)")
)

func main() {
	defaultFlagSet.Parse(os.Args[1:])

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("Logging: %v", err)
	}
	defer logFile.Close()

	// attach sigint & sigterm listeners
	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, syscall.SIGINT, syscall.SIGTERM)

	// quitFunc will be called when process is terminated
	ctx, quitFunc := context.WithCancel(context.Background())
	defer quitFunc()
	go func() {
		<-terminationSignals
		// cancel the main context
		log.Printf("Shutting down..")
		quitFunc()
	}()

	// wait group will make sure all goroutines have time to clean up
	var wg sync.WaitGroup

	vehicle := newVehicleLink(ctx, &wg, cfg)

	// the vehicle link and the broker connect in parallel; both may block
	var mqttClient mqtt.Client
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if cfg.MQTT.Broker == "" {
			return nil
		}
		c, err := cloud.NewMQTTClient(egCtx, cfg.MQTT, cfg.DeviceID)
		if err != nil {
			return err
		}
		mqttClient = c
		return nil
	})
	eg.Go(func() error {
		return errors.WithMessage(vehicle.Connect(egCtx), "connect vehicle")
	})
	if err := eg.Wait(); err != nil {
		vehicle.Close()
		log.Fatalf("Startup: %v", err)
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect(1000)
	}

	source, err := newMissionSource(cfg, mqttClient)
	if err != nil {
		vehicle.Close()
		log.Fatalf("Mission source: %v", err)
	}

	handler := uav.New(vehicle, source, params.JSONFile{Path: cfg.Params.Snapshot})
	defer handler.Close()
	if err := handler.Connect(ctx); err != nil {
		log.Fatalf("Tracker: %v", err)
	}

	handlers := []types.MessageHandler{
		types.NewLogger(),
		telemetry.NewPoller(handler, cfg.DeviceID, cfg.Poll.Interval),
	}
	if mqttClient != nil {
		handlers = append(handlers,
			telemetry.NewPublisher(mqttClient, cfg.DeviceID),
			commands.NewBridge(mqttClient, cfg.DeviceID, commands.NewDispatcher(handler)))
	}
	if cfg.Stream.Listen != "" {
		handlers = append(handlers, stream.NewHub(cfg.Stream.Listen))
	}

	bus := types.NewMessageBus(make(chan types.Message, 100), handlers...)
	go bus.Run(ctx, &wg)

	// wait for termination; the signal goroutine cancels ctx
	<-ctx.Done()

	// wait until goroutines have done their cleanup
	log.Printf("Waiting for routines to finish..")
	wg.Wait()
	log.Printf("Signing off - BYE")
}

// loadConfig reads the config file and lets the command line override it.
// The file may be absent when the flag was left at its default.
func loadConfig() (config.Config, error) {
	explicit := false
	defaultFlagSet.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := config.Load(*configPath, !explicit)
	if err != nil {
		return cfg, err
	}
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if *mqttBrokerAddress != "" {
		cfg.MQTT.Broker = *mqttBrokerAddress
	}
	if *privateKeyPath != "" {
		cfg.MQTT.PrivateKey = *privateKeyPath
	}
	if *linkAddress != "" {
		cfg.Link.Address = *linkAddress
	}
	return cfg, cfg.Validate()
}

func newVehicleLink(ctx context.Context, wg *sync.WaitGroup, cfg config.Config) link.VehicleLink {
	if cfg.Simulated() {
		log.Printf("Using simulated vehicle at %.6f, %.6f", cfg.Sim.Lat, cfg.Sim.Lon)
		v := sim.New(cfg.Sim)
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Run(ctx, simStep)
		}()
		return v
	}
	log.Printf("Vehicle link: %s", cfg.Link.Address)
	return mavlink.New(mavlink.Config{
		Address:  cfg.Link.Address,
		Baud:     cfg.Link.Baud,
		SystemID: byte(cfg.Link.SystemID),
		Timeout:  cfg.Link.Timeout,
	})
}

func newMissionSource(cfg config.Config, client mqtt.Client) (missionsource.Source, error) {
	switch cfg.Mission.Source {
	case config.MissionFile:
		return missionsource.NewFile(cfg.Mission.Path), nil
	case config.MissionMQTT:
		if client == nil {
			return nil, errors.New("mqtt mission source needs a broker")
		}
		return missionsource.NewMQTT(client, cfg.MissionTopic(), cfg.Mission.Wait)
	default:
		return missionsource.None, nil
	}
}
