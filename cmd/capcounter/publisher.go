package main

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/silash35/labrob/pinout"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

type Publisher interface {
	Publish(category pinout.Category, count uint64, total uint64)
	Close()
}

type CountMessage struct {
	Category string `json:"category"`
	Count    uint64 `json:"count"`
	Total    uint64 `json:"total"`
}

func NewPublisher(logger *zerolog.Logger, config MqttConfiguration) Publisher {
	if !config.Enabled() {
		return nopPublisher{}
	}
	return NewMqttPublisher(logger, config)
}

type nopPublisher struct{}

func (nopPublisher) Publish(pinout.Category, uint64, uint64) {}
func (nopPublisher) Close()                                  {}

type MqttPublisher struct {
	logger         *zerolog.Logger
	topic          string
	client         mqtt.Client
	publishTimeout time.Duration
}

func NewMqttPublisher(logger *zerolog.Logger, config MqttConfiguration) *MqttPublisher {
	return newMqttPublisher(logger, config, connectTimeout, publishTimeout)
}

func newMqttPublisher(logger *zerolog.Logger, config MqttConfiguration, connectTimeout, publishTimeout time.Duration) *MqttPublisher {
	mp := &MqttPublisher{
		logger:         ptr(logger.With().Str(LogKey.Module, "Publisher").Logger()),
		topic:          config.Topic,
		publishTimeout: publishTimeout,
	}
	broker := config.BrokerURL()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("capcounter-%d", time.Now().UnixNano()))
	opts.SetUsername(config.User)
	opts.SetPassword(config.Password)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		mp.logger.Warn().Msgf("MQTT connection lost '%v'", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		mp.logger.Warn().Msgf("Reconnecting to %s", broker)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		mp.logger.Info().Msgf("Connected to %s", broker)
	})

	mp.client = mqtt.NewClient(opts)
	token := mp.client.Connect()
	go func() {
		// With connect retry the token only completes once connected.
		if !token.WaitTimeout(connectTimeout) {
			mp.logger.Error().Msgf("MQTT broker %s unreachable, retrying in background", broker)
			return
		}
		if err := token.Error(); err != nil {
			mp.logger.Error().Msgf("Error connecting to MQTT broker %s '%v'", broker, err)
		}
	}()
	return mp
}

func (mp *MqttPublisher) topicFor(category pinout.Category) string {
	return mp.topic + "/" + category.String()
}

func (mp *MqttPublisher) Publish(category pinout.Category, count uint64, total uint64) {
	payload, err := json.Marshal(CountMessage{Category: category.String(), Count: count, Total: total})
	if err != nil {
		mp.logger.Error().Msgf("Failed encoding count '%v'", err)
		return
	}

	token := mp.client.Publish(mp.topicFor(category), 1, true, payload)
	go func() {
		if !token.WaitTimeout(mp.publishTimeout) {
			mp.logger.Warn().Str(LogKey.Category, category.String()).Msg("Publish timed out")
			PublishFailures.Inc()
			return
		}
		if err := token.Error(); err != nil {
			mp.logger.Error().Str(LogKey.Category, category.String()).Msgf("Publish failed '%v'", err)
			PublishFailures.Inc()
		}
	}()
}

func (mp *MqttPublisher) Close() {
	mp.client.Disconnect(250)
	mp.logger.Info().Msg("Disconnected")
}
