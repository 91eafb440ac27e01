// Package bridge pumps channel updates from the MQTT client into a single
// DMX output port.
package bridge

import (
	"context"
	"fmt"

	"dmxport"
	"dmxport/internal/clientmqtt"
	"dmxport/internal/logger"
)

// Bridge owns one open port and the current frame. All port access happens
// on the run goroutine; ports are single-owner.
type Bridge struct {
	log   logger.Logger
	port  dmxport.Port
	frame [dmxport.MaxChannels]byte
	width int // channels in use, grows as updates arrive
	done  chan struct{}
}

// New wraps the given closed port. Start opens it.
func New(log logger.Logger, port dmxport.Port) *Bridge {
	return &Bridge{log: log, port: port}
}

// Start opens the port and begins consuming updates. The bridge stops when
// ctx is canceled or updates is closed; Wait blocks until then.
func (b *Bridge) Start(ctx context.Context, updates <-chan clientmqtt.Update) error {
	if err := b.port.Open(); err != nil {
		return fmt.Errorf("opening %s: %w", b.port, err)
	}
	b.log.With(logger.Fields{"module": "bridge"}).Infof("output port open: %s", b.port)

	b.done = make(chan struct{})
	go b.run(ctx, updates)
	return nil
}

// Wait blocks until the pump has shut the port down.
func (b *Bridge) Wait() {
	<-b.done
}

func (b *Bridge) run(ctx context.Context, updates <-chan clientmqtt.Update) {
	defer close(b.done)
	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.apply(u)
			b.flush()
		}
	}
}

func (b *Bridge) apply(u clientmqtt.Update) {
	for _, cmd := range u.Commands {
		ch := int(cmd.Channel) + u.Offset
		if ch < 0 || ch >= dmxport.MaxChannels {
			b.log.With(logger.Fields{"module": "bridge"}).Warnf("channel %d out of range, dropped", ch)
			continue
		}
		b.frame[ch] = cmd.Value
		if ch+1 > b.width {
			b.width = ch + 1
		}
	}
}

func (b *Bridge) flush() {
	if err := b.port.Write(b.frame[:b.width]); err != nil {
		b.log.With(logger.Fields{"module": "bridge"}).Errorf("writing frame: %v", err)
	}
}

// shutdown blacks out whatever we touched and releases the port.
func (b *Bridge) shutdown() {
	if b.width > 0 {
		if err := b.port.Write(make([]byte, b.width)); err != nil {
			b.log.With(logger.Fields{"module": "bridge"}).Warnf("blackout: %v", err)
		}
	}
	if err := b.port.Close(); err != nil {
		b.log.With(logger.Fields{"module": "bridge"}).Errorf("closing port: %v", err)
	}
	b.log.With(logger.Fields{"module": "bridge"}).Info("output port closed")
}
