// Package config loads thumblight configuration from defaults, an optional
// YAML file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/thumblight/internal/logging"
)

// Defaults applied before any file or environment value.
const (
	DefaultPort             = 1883
	DefaultKeepAlive        = 60 * time.Second
	DefaultCameraURL        = "http://192.168.4.1/cam-hi.jpg"
	DefaultFetchTimeout     = 5 * time.Second
	DefaultHTTPAddr         = ":8501"
	DefaultConsumptionField = "consumo"
)

// Config represents the complete thumblight configuration.
type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Topics   TopicsConfig   `yaml:"topics"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      logging.Config `yaml:"log"`
}

// BrokerConfig contains MQTT connection settings.
type BrokerConfig struct {
	Host      string        `yaml:"host" validate:"required"`
	Port      int           `yaml:"port" validate:"required,min=1,max=65535"`
	Username  string        `yaml:"username" validate:"required"`
	Password  string        `yaml:"password" validate:"required"`
	ClientID  string        `yaml:"client_id"`
	KeepAlive time.Duration `yaml:"keep_alive"`
}

// TopicsConfig names the broker topics each process uses.
type TopicsConfig struct {
	Control          string `yaml:"control" validate:"required"`
	Availability     string `yaml:"availability" validate:"required"`
	Consumption      string `yaml:"consumption" validate:"required"`
	ConsumptionField string `yaml:"consumption_field"`
}

// CameraConfig controls the snapshot acquisition loop.
type CameraConfig struct {
	URL          string        `yaml:"url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRetries int           `yaml:"fetch_retries" validate:"min=0"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DetectorConfig locates the external landmark model.
type DetectorConfig struct {
	Script string `yaml:"script"`
	Python string `yaml:"python"`
}

// HTTPConfig contains dashboard server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Role selects which fields are mandatory.
// Role selects which settings Validate requires.
type Role int

const (
	// RolePublisher is the gesture-triggered publisher (serve, watch).
	RolePublisher Role = iota
	// RoleSubscriber is the consumption subscriber.
	RoleSubscriber
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a Config holding only built-in defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Port:      DefaultPort,
			KeepAlive: DefaultKeepAlive,
		},
		Topics: TopicsConfig{
			ConsumptionField: DefaultConsumptionField,
		},
		Camera: CameraConfig{
			URL:          DefaultCameraURL,
			FetchTimeout: DefaultFetchTimeout,
			RetryBackoff: 500 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Addr: DefaultHTTPAddr,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults, .env and the environment are consulted. The result is validated
// for the given role.
func Load(path string, role Role) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(role); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields required by role.
func (c *Config) Validate(role Role) error {
	fields := []string{
		"Broker.Host", "Broker.Port", "Broker.Username", "Broker.Password",
		"Camera.FetchRetries",
	}
	switch role {
	case RolePublisher:
		fields = append(fields, "Topics.Control", "Topics.Availability")
	case RoleSubscriber:
		fields = append(fields, "Topics.Consumption")
	}

	if err := validate.StructPartial(c, fields...); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed %q constraint", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) error {
	strVars := map[string]*string{
		"MQTT_HOST":               &cfg.Broker.Host,
		"MQTT_USERNAME":           &cfg.Broker.Username,
		"MQTT_PASSWORD":           &cfg.Broker.Password,
		"MQTT_CLIENT_ID":          &cfg.Broker.ClientID,
		"MQTT_TOPIC":              &cfg.Topics.Control,
		"MQTT_AVAILABILITY_TOPIC": &cfg.Topics.Availability,
		"MQTT_CONSUMPTION_TOPIC":  &cfg.Topics.Consumption,
		"MQTT_CONSUMPTION_FIELD":  &cfg.Topics.ConsumptionField,
		"CAMERA_URL":              &cfg.Camera.URL,
		"MEDIAPIPE_SCRIPT":        &cfg.Detector.Script,
		"MEDIAPIPE_PYTHON":        &cfg.Detector.Python,
		"HTTP_ADDR":               &cfg.HTTP.Addr,
		"LOG_LEVEL":               &cfg.Log.Level,
		"LOG_FILE":                &cfg.Log.File,
	}
	for key, dst := range strVars {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"MQTT_PORT":            &cfg.Broker.Port,
		"CAMERA_FETCH_RETRIES": &cfg.Camera.FetchRetries,
	}
	for key, dst := range intVars {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durVars := map[string]*time.Duration{
		"MQTT_KEEP_ALIVE":      &cfg.Broker.KeepAlive,
		"CAMERA_FETCH_TIMEOUT": &cfg.Camera.FetchTimeout,
		"CAMERA_RETRY_BACKOFF": &cfg.Camera.RetryBackoff,
		"CAMERA_POLL_INTERVAL": &cfg.Camera.PollInterval,
	}
	for key, dst := range durVars {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	return nil
}
