package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/actuator"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

const defaultSubmitTimeout = 10 * time.Second

// Subscriber is the MQTT client subset CommandIngress needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// CommandIngress turns messages on {prefix}/command/{domain}/{service} into
// hub service calls. Payloads are decoded by service.DecodeCall.
type CommandIngress struct {
	sub     Subscriber
	submit  actuator.Submitter
	topics  mqtt.Topics
	timeout time.Duration
	logger  Logger
}

// NewCommandIngress creates an ingress submitting through submitter.
func NewCommandIngress(sub Subscriber, submitter actuator.Submitter, topics mqtt.Topics) *CommandIngress {
	return &CommandIngress{
		sub:     sub,
		submit:  submitter,
		topics:  topics,
		timeout: defaultSubmitTimeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *CommandIngress) SetLogger(logger Logger) {
	c.logger = orNoop(logger)
}

// Start subscribes to every command topic.
func (c *CommandIngress) Start(qos byte) error {
	if err := c.sub.Subscribe(c.topics.AllCommands(), qos, c.Handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	c.logger.Info("mqtt command ingress started", "topic", c.topics.AllCommands())
	return nil
}

// Stop unsubscribes from the command topics.
func (c *CommandIngress) Stop() error {
	return c.sub.Unsubscribe(c.topics.AllCommands())
}

// Handle submits the command carried by one message.
func (c *CommandIngress) Handle(topic string, payload []byte) error {
	cmd, err := c.parse(topic, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	id, err := c.submit.Submit(ctx, cmd)
	if err != nil {
		return fmt.Errorf("submitting %s: %w", cmd, err)
	}
	c.logger.Info("mqtt command submitted", "id", id, "service", cmd.String(), "target", targetOf(cmd))
	return nil
}

func (c *CommandIngress) parse(topic string, payload []byte) (service.Command, error) {
	domain, svc, ok := c.topics.ParseCommand(topic)
	if !ok {
		return service.Command{}, fmt.Errorf("%w: topic %q", ErrBadCommand, topic)
	}
	cmd, err := service.DecodeCall(domain, svc, payload)
	if err != nil {
		return service.Command{}, fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	return cmd, nil
}

func targetOf(cmd service.Command) string {
	if cmd.Target == nil {
		return ""
	}
	return cmd.Target.String()
}
