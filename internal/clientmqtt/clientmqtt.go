// Package clientmqtt subscribes to the configured channel-value topics and
// forwards parsed updates to the bridge.
package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dmxport/internal/logger"
)

// ClientMQTT owns the broker connection and the topic subscriptions.
type ClientMQTT struct {
	ctx      context.Context
	log      logger.Logger
	cfg      MQTTConf
	client   mqtt.Client
	opts     *mqtt.ClientOptions
	updates  chan<- Update
	offsets  map[string]int // topic name -> channel offset
}

// MQTTClient is a convenience interface to use within this application.
type MQTTClient interface {
	Start(ctx context.Context, updates chan<- Update) error
	Stop() error
}

// NewClient builds a client for the given topic-to-offset mapping. Nothing
// connects until Start.
func NewClient(log logger.Logger, cfg MQTTConf, offsets map[string]int) *ClientMQTT {
	return &ClientMQTT{
		log:     log,
		cfg:     cfg,
		offsets: offsets,
	}
}

// Start connects to the broker and subscribes every configured topic.
func (c *ClientMQTT) Start(ctx context.Context, updates chan<- Update) error {
	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx
	c.updates = updates

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfg.Schema, c.cfg.Host, c.cfg.Port)).
		SetUsername(c.cfg.User).
		SetPassword(c.cfg.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("connected: %v", c.client.IsConnected())

	for topic := range c.offsets {
		c.sub(topic)
	}
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Info("client connected to broker")
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Errorf("broker connection lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("received %d bytes on topic %s", len(msg.Payload()), msg.Topic())
	go c.forward(msg)
}

func (c *ClientMQTT) forward(msg mqtt.Message) {
	offset, ok := c.offsets[msg.Topic()]
	if !ok {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("message on unconfigured topic %s dropped", msg.Topic())
		return
	}

	var data Payload
	if err := json.Unmarshal(msg.Payload(), &data); err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("unparseable payload on %s: %v", msg.Topic(), err)
		return
	}
	select {
	case c.updates <- Update{Offset: offset, Commands: data}:
	case <-c.ctx.Done():
	}
}

func (c *ClientMQTT) sub(topic string) {
	token := c.client.Subscribe(topic, c.cfg.Qos, nil)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Errorf("subscribing %s: %v", topic, token.Error())
				return
			}
		}
		c.log.With(logger.Fields{"module": "mqtt"}).Debugf("topic %s subscribed", topic)
	}()
}
