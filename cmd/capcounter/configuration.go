package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

const (
	HEARTBEAT byte = 255

	defaultBaudRate    = 9600
	defaultHeartbeatMs = 200
	defaultHttpAddress = ":8080"
	defaultMqttPort    = 1883
	defaultMqttTopic   = "capcounter"
)

type Configuration struct {
	LogLevel zerolog.Level

	PortName          string
	BaudRate          int
	HeartbeatInterval time.Duration

	HttpAddress string

	Mqtt MqttConfiguration
}

type MqttConfiguration struct {
	Broker   string
	Port     int
	User     string
	Password string
	Topic    string
}

func (m MqttConfiguration) Enabled() bool {
	return m.Broker != ""
}

func (m MqttConfiguration) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		LogLevel:          zerolog.InfoLevel,
		BaudRate:          defaultBaudRate,
		HeartbeatInterval: defaultHeartbeatMs * time.Millisecond,
		HttpAddress:       defaultHttpAddress,
		Mqtt: MqttConfiguration{
			Port:  defaultMqttPort,
			Topic: defaultMqttTopic,
		},
	}
}

// LoadConfiguration reads an ini file on top of the defaults. An empty path
// yields the defaults.
func LoadConfiguration(path string) (*Configuration, error) {
	config := DefaultConfiguration()
	if path == "" {
		return config, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	root := file.Section("")
	if name := root.Key("log_level").String(); name != "" {
		level, err := zerolog.ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		config.LogLevel = level
	}

	serialSection := file.Section("serial")
	config.PortName = serialSection.Key("port").MustString(config.PortName)
	config.BaudRate = serialSection.Key("baud_rate").MustInt(config.BaudRate)
	heartbeatMs := serialSection.Key("heartbeat_ms").MustInt(defaultHeartbeatMs)
	if heartbeatMs <= 0 {
		return nil, fmt.Errorf("heartbeat_ms must be positive, got %d", heartbeatMs)
	}
	config.HeartbeatInterval = time.Duration(heartbeatMs) * time.Millisecond
	if config.BaudRate <= 0 {
		return nil, fmt.Errorf("baud_rate must be positive, got %d", config.BaudRate)
	}

	config.HttpAddress = file.Section("http").Key("address").MustString(config.HttpAddress)

	mqttSection := file.Section("mqtt")
	config.Mqtt.Broker = mqttSection.Key("broker").String()
	config.Mqtt.Port = mqttSection.Key("port").MustInt(config.Mqtt.Port)
	config.Mqtt.User = mqttSection.Key("user").String()
	config.Mqtt.Password = mqttSection.Key("password").String()
	config.Mqtt.Topic = mqttSection.Key("topic").MustString(config.Mqtt.Topic)

	return config, nil
}
