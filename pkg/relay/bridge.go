package relay

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/command"
)

// DefaultBridgeBuffer is the number of remote commands queued before new
// ones are dropped.
const DefaultBridgeBuffer = 16

// ModeMessage is the payload of a remote command.
type ModeMessage struct {
	Mode string `json:"mode"`
}

// Bridge turns remote mode messages into controller commands. Deliver may
// be called from any goroutine; Run performs the writes in order.
type Bridge struct {
	sender   command.Sender
	messages chan []byte
}

// NewBridge creates a bridge writing through sender.
func NewBridge(sender command.Sender) *Bridge {
	return &Bridge{
		sender:   sender,
		messages: make(chan []byte, DefaultBridgeBuffer),
	}
}

// Deliver queues a raw message without blocking.
func (b *Bridge) Deliver(payload []byte) {
	select {
	case b.messages <- payload:
	default:
		log.WithField("loop", "bridge").Warn("Command queue full, dropping remote command")
	}
}

// Run handles queued messages until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	logger := log.WithField("loop", "bridge")
	logger.Debug("Command bridge started")
	defer logger.Debug("Command bridge stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-b.messages:
			if err := b.Handle(payload); err != nil {
				logger.WithError(err).Warn("Remote command ignored")
			}
		}
	}
}

// Handle decodes one {"mode": ...} message and sends the command.
func (b *Bridge) Handle(payload []byte) error {
	var msg ModeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode %q: %w", payload, err)
	}

	cmd, err := command.Parse(msg.Mode)
	if err != nil {
		return err
	}

	log.WithField("mode", cmd).Info("Received remote command")
	return b.sender.Send(cmd)
}
