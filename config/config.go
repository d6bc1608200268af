// Package config loads the panel configuration from an optional file, a .env
// file and PANEL_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gitlab.com/lologarithm/panel/actuator"
	"gitlab.com/lologarithm/panel/alert"
	"gitlab.com/lologarithm/panel/climate"
	"gitlab.com/lologarithm/panel/hlog"
	"gitlab.com/lologarithm/panel/history"
	"gitlab.com/lologarithm/panel/rnet"
	"gitlab.com/lologarithm/panel/sensor"
	"gitlab.com/lologarithm/panel/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. PANEL_MQTT_BROKER.
const EnvPrefix = "PANEL"

type Config struct {
	Name       string           `mapstructure:"name"`
	Listen     string           `mapstructure:"listen"`
	Vocabulary string           `mapstructure:"vocabulary"` // builtin name or .toml file
	Stream     Stream           `mapstructure:"stream"`
	Hardware   Hardware         `mapstructure:"hardware"`
	Sensor     Sensor           `mapstructure:"sensor"`
	Climate    climate.Settings `mapstructure:"climate"`
	Driver     Driver           `mapstructure:"driver"`
	MQTT       MQTT             `mapstructure:"mqtt"`
	Mail       Mail             `mapstructure:"mail"`
	History    History          `mapstructure:"history"`
	Discovery  Discovery        `mapstructure:"discovery"`
	Log        hlog.Config      `mapstructure:"log"`
}

type Stream struct {
	Enabled  bool   `mapstructure:"enabled"`
	Listen   string `mapstructure:"listen"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type Hardware struct {
	// Require fails startup instead of falling back to the fake board.
	Require       bool `mapstructure:"require"`
	actuator.Pins `mapstructure:",squash"`
}

// Sensor channels. A zero gain uses the 0-50°C / 0-100% preset for the
// board's ADC; on_die switches temperature to the on-die sensor transform.
type Sensor struct {
	Temp     sensor.Channel `mapstructure:"temp"`
	Humidity sensor.Channel `mapstructure:"humidity"`
	OnDie    bool           `mapstructure:"on_die"`
}

type Driver struct {
	LightGain float64       `mapstructure:"light_gain"`
	BuzzGain  float64       `mapstructure:"buzz_gain"`
	BuzzDuty  float64       `mapstructure:"buzz_duty"`
	BuzzDwell time.Duration `mapstructure:"buzz_dwell"`
	Async     bool          `mapstructure:"async"`
}

type MQTT struct {
	Enabled          bool `mapstructure:"enabled"`
	telemetry.Config `mapstructure:",squash"`
}

type Mail struct {
	Enabled      bool `mapstructure:"enabled"`
	alert.Config `mapstructure:",squash"`
}

type History struct {
	Dir        string     `mapstructure:"dir"` // empty disables the stats files
	ClickHouse ClickHouse `mapstructure:"clickhouse"`
}

type ClickHouse struct {
	Enabled                  bool `mapstructure:"enabled"`
	history.ClickHouseConfig `mapstructure:",squash"`
}

type Discovery struct {
	Enabled  bool          `mapstructure:"enabled"`
	Group    string        `mapstructure:"group"`
	Refresh  time.Duration `mapstructure:"refresh"`
	Zeroconf bool          `mapstructure:"zeroconf"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "Panel")
	v.SetDefault("listen", ":80")
	v.SetDefault("vocabulary", "paths")

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.listen", ":8080")
	v.SetDefault("stream.read_only", false)

	p := actuator.DefaultPins
	v.SetDefault("hardware.require", false)
	v.SetDefault("hardware.buzzer_a", p.BuzzerA)
	v.SetDefault("hardware.buzzer_b", p.BuzzerB)
	v.SetDefault("hardware.tone", p.Tone)
	v.SetDefault("hardware.red", p.Red)
	v.SetDefault("hardware.green", p.Green)
	v.SetDefault("hardware.blue", p.Blue)
	v.SetDefault("hardware.led_gate", p.LEDGate)
	v.SetDefault("hardware.led_chip", p.LEDChip)
	v.SetDefault("hardware.adc_chip", p.ADCChip)
	v.SetDefault("hardware.init_attempts", p.InitAttempts)
	v.SetDefault("hardware.init_backoff", p.InitBackoff)

	v.SetDefault("sensor.temp.index", 1)
	v.SetDefault("sensor.temp.gain", 0)
	v.SetDefault("sensor.temp.offset", 0)
	v.SetDefault("sensor.humidity.index", 0)
	v.SetDefault("sensor.humidity.gain", 0)
	v.SetDefault("sensor.humidity.offset", 0)
	v.SetDefault("sensor.on_die", false)

	c := climate.Defaults
	v.SetDefault("climate.temp.low", c.Temp.Low)
	v.SetDefault("climate.temp.high", c.Temp.High)
	v.SetDefault("climate.humidity.low", c.Humidity.Low)
	v.SetDefault("climate.humidity.high", c.Humidity.High)
	v.SetDefault("climate.bias.temp", c.Bias.Temp)
	v.SetDefault("climate.bias.humidity", c.Bias.Humidity)

	v.SetDefault("driver.light_gain", actuator.DefaultLightGain)
	v.SetDefault("driver.buzz_gain", actuator.DefaultBuzzGain)
	v.SetDefault("driver.buzz_duty", actuator.DefaultBuzzDuty)
	v.SetDefault("driver.buzz_dwell", actuator.DefaultBuzzDwell)
	v.SetDefault("driver.async", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "panel")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.state_topic", "panel/{name}/state")
	v.SetDefault("mqtt.command_topic", "panel/{name}/request")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", true)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.domain", "")
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.recipients", []string{})
	v.SetDefault("mail.cooldown", time.Hour)

	v.SetDefault("history.dir", "./stats")
	v.SetDefault("history.clickhouse.enabled", false)
	v.SetDefault("history.clickhouse.addr", "localhost:9000")
	v.SetDefault("history.clickhouse.database", "default")
	v.SetDefault("history.clickhouse.username", "default")
	v.SetDefault("history.clickhouse.password", "")
	v.SetDefault("history.clickhouse.table", "panel_events")

	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.group", rnet.DiscoveryAddr)
	v.SetDefault("discovery.refresh", 30*time.Second)
	v.SetDefault("discovery.zeroconf", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
}

// Load reads path, or panel.{toml,yaml,json} from . and /etc/panel when path
// is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("panel")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/panel")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return c, nil
}

// TempChannel resolves the temperature channel for an ADC of the given full scale.
func (s Sensor) TempChannel(full uint16) sensor.Channel {
	switch {
	case s.OnDie:
		return sensor.OnDieTemp(s.Temp.Index, 12)
	case s.Temp.Gain == 0:
		return sensor.AnalogTemp(s.Temp.Index, full)
	}
	return s.Temp
}

// HumidityChannel resolves the humidity channel for an ADC of the given full scale.
func (s Sensor) HumidityChannel(full uint16) sensor.Channel {
	if s.Humidity.Gain == 0 {
		return sensor.AnalogHumidity(s.Humidity.Index, full)
	}
	return s.Humidity
}
