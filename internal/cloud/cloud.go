// Package cloud connects the bridge to the fleet's MQTT broker, authenticating
// the device with a signed JWT the way Cloud IoT Core expects.
package cloud

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultServer = "ssl://mqtt.googleapis.com:8883"
	Username      = "unused" // always this value in GCP
	tokenLifetime = 24 * time.Hour
)

type Config struct {
	Broker     string `yaml:"broker"`
	PrivateKey string `yaml:"private_key"`
	ProjectID  string `yaml:"project_id"`
	Region     string `yaml:"region"`
	RegistryID string `yaml:"registry_id"`
	Algorithm  string `yaml:"algorithm"`
}

func ClientID(cfg Config, deviceID string) string {
	return fmt.Sprintf(
		"projects/%s/locations/%s/registries/%s/devices/%s",
		cfg.ProjectID, cfg.Region, cfg.RegistryID, deviceID)
}

// SignJWT returns the MQTT password: a token for projectID signed with the
// PEM private key.
func SignJWT(keyPEM []byte, algorithm, projectID string, now time.Time) (string, error) {
	var (
		key interface{}
		err error
	)
	switch algorithm {
	case "RS256":
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	case "ES256":
		key, err = jwt.ParseECPrivateKeyFromPEM(keyPEM)
	default:
		return "", errors.Errorf("unknown algorithm: %s", algorithm)
	}
	if err != nil {
		return "", errors.WithMessage(err, "parse private key")
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(algorithm), &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenLifetime).Unix(),
		Audience:  projectID,
	})
	return token.SignedString(key)
}

// NewMQTTClient connects and keeps retrying on timeouts until connected or
// ctx is done. Any other connection error is returned.
func NewMQTTClient(ctx context.Context, cfg Config, deviceID string) (mqtt.Client, error) {
	serverAddress := cfg.Broker
	if serverAddress == "" {
		serverAddress = DefaultServer
	}
	log.Printf("address: %v", serverAddress)

	clientID := ClientID(cfg, deviceID)
	log.Println("Client ID:", clientID)

	keyData, err := os.ReadFile(cfg.PrivateKey)
	if err != nil {
		return nil, errors.WithMessage(err, "read private key")
	}
	pass, err := SignJWT(keyData, cfg.Algorithm, cfg.ProjectID, time.Now())
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(serverAddress).
		SetClientID(clientID).
		SetUsername(Username).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetPassword(pass).
		SetProtocolVersion(4) // Use MQTT 3.1.1

	client := mqtt.NewClient(opts)

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithMessage(err, "connect mqtt")
		}
		log.Printf("Connecting MQTT...")
		tok := client.Connect()
		if !tok.WaitTimeout(time.Second * 5) {
			log.Println("Connection Timeout")
			continue
		}
		if err := tok.Error(); err != nil {
			return nil, errors.WithMessage(err, "connect mqtt")
		}
		log.Printf("..Connected")
		return client, nil
	}
}
