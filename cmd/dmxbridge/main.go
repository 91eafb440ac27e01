// Command dmxbridge drives one DMX output port from MQTT channel-value
// messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dmxport"
	"dmxport/internal/bridge"
	"dmxport/internal/clientmqtt"
	"dmxport/internal/config"
	"dmxport/internal/logger"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/dmxbridge.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v\n", err)
		os.Exit(1)
	}

	id, err := cfg.Port.Identity()
	if err != nil {
		log.With(logger.Fields{"module": "bridge"}).Errorf("resolving output port: %v", err)
		os.Exit(1)
	}
	port, err := dmxport.NewPort(log, id)
	if err != nil {
		log.With(logger.Fields{"module": "bridge"}).Errorf("building output port: %v", err)
		os.Exit(1)
	}

	offsets := make(map[string]int, len(cfg.Topics))
	for _, t := range cfg.Topics {
		offsets[t.Name] = t.Offset
	}
	if len(offsets) == 0 {
		log.With(logger.Fields{"module": "mqtt"}).Error("no topics configured, nothing to do")
		os.Exit(1)
	}

	client := clientmqtt.NewClient(log, convertMQTTConf(cfg.MQTT), offsets)
	b := bridge.New(log, port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	updates := make(chan clientmqtt.Update, 10)

	if err = b.Start(ctx, updates); err != nil {
		log.With(logger.Fields{"module": "bridge"}).Error("failed to start bridge: ", err.Error())
		os.Exit(1)
	}

	if err = client.Start(ctx, updates); err != nil {
		log.With(logger.Fields{"module": "mqtt"}).Error("failed to start MQTT client: ", err.Error())
		cancel()
	}

	<-ctx.Done()

	if err := client.Stop(); err != nil {
		log.With(logger.Fields{"module": "mqtt"}).Error("failed to stop MQTT client: ", err.Error())
	}

	b.Wait()

	log.Info("shutdown complete")
}

func convertMQTTConf(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID: cfg.ClientID,
		Schema:   "tcp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Qos:      cfg.Qos,
	}
}
