package mqtt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	// Camera frames arrive as JPEG, occasionally PNG.
	_ "image/jpeg"
	_ "image/png"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"home-sentinel/internal/config"
	domain "home-sentinel/internal/domain/security"
	"home-sentinel/internal/logger"
	"home-sentinel/internal/service/security"
)

const (
	// payloadOnline is published to the availability topic after connecting.
	payloadOnline = "online"
	// payloadOffline is the will payload and the clean shutdown publish.
	payloadOffline = "offline"

	// defaultQoS is used for every subscription and publish.
	defaultQoS byte = 1

	// connectRetryInterval is the delay between broker connection attempts.
	connectRetryInterval = 5 * time.Second

	// disconnectQuiesce is how long Disconnect waits for in-flight work,
	// in milliseconds, per the paho API.
	disconnectQuiesce = 1000
)

// errConnectTimeout is returned when the broker does not answer in time.
var errConnectTimeout = errors.New("timed out connecting to MQTT broker")

// Bridge connects the security controller to an MQTT broker. It drives the
// controller from sensor, camera and command topics and, as a status and
// cat-detection listener, publishes the controller's decisions back out.
type Bridge struct {
	cfg     *config.Config
	service *security.Service
	client  pahomqtt.Client

	// sensors maps a subscribed topic to its sensor definition.
	sensors map[string]config.SensorTopic

	ctx context.Context
}

// NewBridge creates a disconnected bridge. Call Start to connect.
func NewBridge(ctx context.Context, cfg *config.Config, service *security.Service) *Bridge {
	sensors := make(map[string]config.SensorTopic, len(cfg.Sensors))
	for _, sensor := range cfg.Sensors {
		sensors[sensor.Topic] = sensor
	}

	return &Bridge{
		cfg:     cfg,
		service: service,
		sensors: sensors,
		ctx:     ctx,
	}
}

// Start connects to the broker and registers the bridge as a listener on the
// controller. Subscriptions are established by the on-connect handler so they
// survive reconnects.
func (b *Bridge) Start() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURI).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetWill(b.cfg.AvailabilityTopic, payloadOffline, defaultQoS, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.WarnKV(b.ctx, "lost connection to MQTT broker", "error", err)
		})

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	client := pahomqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(b.cfg.Timeout) {
		return errConnectTimeout
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker: %w", err)
	}

	b.client = client

	b.service.AddStatusListener(b)
	b.service.AddCatDetectionListener(b)

	logger.InfoKV(b.ctx, "MQTT bridge started", "broker", b.cfg.BrokerURI)

	return nil
}

// Stop publishes the offline state, detaches from the controller and
// disconnects from the broker.
func (b *Bridge) Stop() {
	b.service.RemoveStatusListener(b)
	b.service.RemoveCatDetectionListener(b)

	if b.client == nil {
		return
	}

	b.client.Publish(b.cfg.AvailabilityTopic, defaultQoS, true, payloadOffline).
		WaitTimeout(b.cfg.Timeout)
	b.client.Disconnect(disconnectQuiesce)

	logger.Info(b.ctx, "MQTT bridge stopped")
}

// onConnect establishes subscriptions and republishes the current state so
// subscribers resynchronize after a broker restart.
func (b *Bridge) onConnect(client pahomqtt.Client) {
	logger.Info(b.ctx, "connected to MQTT broker")

	client.Publish(b.cfg.AvailabilityTopic, defaultQoS, true, payloadOnline)

	for topic := range b.sensors {
		b.subscribe(client, topic, b.handleSensorMessage)
	}

	if b.cfg.CameraTopic != "" {
		b.subscribe(client, b.cfg.CameraTopic, b.handleCameraMessage)
	}

	b.subscribe(client, b.cfg.CommandTopic, b.handleCommandMessage)

	b.publishSnapshot(client)
}

// subscribe attaches a handler to a topic, logging failures instead of
// aborting so one bad topic does not take the bridge down.
func (b *Bridge) subscribe(client pahomqtt.Client, topic string, handler pahomqtt.MessageHandler) {
	token := client.Subscribe(topic, defaultQoS, handler)
	if token.WaitTimeout(b.cfg.Timeout) && token.Error() != nil {
		logger.ErrorKV(b.ctx, "failed to subscribe", "topic", topic, "error", token.Error())
	}
}

// publishSnapshot pushes the current alarm status and cat flag as retained
// messages.
func (b *Bridge) publishSnapshot(client pahomqtt.Client) {
	ctx, cancel := b.opContext()
	defer cancel()

	status, err := b.service.AlarmStatus(ctx)
	if err != nil {
		logger.ErrorKV(b.ctx, "failed to read alarm status", "error", err)

		return
	}

	cat, err := b.service.CatDetected(ctx)
	if err != nil {
		logger.ErrorKV(b.ctx, "failed to read cat detection flag", "error", err)

		return
	}

	client.Publish(b.cfg.StatusTopic, defaultQoS, true, string(status))
	client.Publish(b.cfg.CatTopic, defaultQoS, true, strconv.FormatBool(cat))
}

// handleSensorMessage translates a sensor topic payload into a sensor
// activation change on the controller.
func (b *Bridge) handleSensorMessage(_ pahomqtt.Client, message pahomqtt.Message) {
	definition, ok := b.sensors[message.Topic()]
	if !ok {
		logger.WarnKV(b.ctx, "message on unknown sensor topic", "topic", message.Topic())

		return
	}

	active, err := parseActivity(message.Payload())
	if err != nil {
		logger.WarnKV(b.ctx, "ignoring sensor message",
			"topic", message.Topic(),
			"error", err)

		return
	}

	ctx, cancel := b.opContext()
	defer cancel()

	sensor, err := b.lookupSensor(ctx, definition)
	if err != nil {
		logger.ErrorKV(ctx, "failed to look up sensor",
			"sensor", definition.Name,
			"error", err)

		return
	}

	if err = b.service.ChangeSensorActivation(ctx, sensor, active); err != nil {
		logger.ErrorKV(ctx, "failed to apply sensor change",
			"sensor", definition.Name,
			"active", active,
			"error", err)
	}
}

// handleCameraMessage decodes a camera frame and runs it through detection.
func (b *Bridge) handleCameraMessage(_ pahomqtt.Client, message pahomqtt.Message) {
	img, _, err := image.Decode(bytes.NewReader(message.Payload()))
	if err != nil {
		logger.WarnKV(b.ctx, "ignoring undecodable camera frame",
			"topic", message.Topic(),
			"error", err)

		return
	}

	ctx, cancel := b.opContext()
	defer cancel()

	if err = b.service.ProcessImage(ctx, img); err != nil {
		logger.ErrorKV(ctx, "failed to process camera frame", "error", err)
	}
}

// handleCommandMessage applies an arming command.
func (b *Bridge) handleCommandMessage(_ pahomqtt.Client, message pahomqtt.Message) {
	status, err := domain.ParseArmingStatus(strings.TrimSpace(string(message.Payload())))
	if err != nil {
		logger.WarnKV(b.ctx, "ignoring arming command",
			"payload", string(message.Payload()),
			"error", err)

		return
	}

	ctx, cancel := b.opContext()
	defer cancel()

	if err = b.service.SetArmingStatus(ctx, status); err != nil {
		logger.ErrorKV(ctx, "failed to set arming status",
			"status", status,
			"error", err)
	}
}

// OnAlarmStatusChanged publishes a new alarm status as a retained message.
func (b *Bridge) OnAlarmStatusChanged(status domain.AlarmStatus) {
	b.publish(b.cfg.StatusTopic, string(status))
}

// OnCatDetected publishes a detection result as a retained message.
func (b *Bridge) OnCatDetected(detected bool) {
	b.publish(b.cfg.CatTopic, strconv.FormatBool(detected))
}

// publish sends a retained message, waiting for delivery off the caller's
// path so controller notifications never block on the broker.
func (b *Bridge) publish(topic, payload string) {
	if b.client == nil {
		return
	}

	token := b.client.Publish(topic, defaultQoS, true, payload)

	go func() {
		if !token.WaitTimeout(b.cfg.Timeout) {
			logger.WarnKV(b.ctx, "publish timed out", "topic", topic)
		} else if err := token.Error(); err != nil {
			logger.WarnKV(b.ctx, "publish failed", "topic", topic, "error", err)
		}
	}()
}

// lookupSensor finds the current state of the configured sensor, falling
// back to a fresh inactive sensor when the store has not seen it yet.
func (b *Bridge) lookupSensor(ctx context.Context, definition config.SensorTopic) (*domain.Sensor, error) {
	sensors, err := b.service.Sensors(ctx)
	if err != nil {
		return nil, err
	}

	for _, sensor := range sensors {
		if sensor.Name == definition.Name {
			return sensor, nil
		}
	}

	return domain.NewSensor(definition.Name, definition.Type), nil
}

// opContext derives a per-operation context with the configured timeout.
func (b *Bridge) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, b.cfg.Timeout)
}

// parseActivity interprets the payload conventions of common sensor
// firmwares: ON/OFF and OPEN/CLOSED strings, booleans, and integers where
// zero means inactive.
func parseActivity(payload []byte) (bool, error) {
	text := strings.ToUpper(strings.TrimSpace(string(payload)))

	if number, err := strconv.Atoi(text); err == nil {
		return number != 0, nil
	}

	switch text {
	case "ON", "OPEN", "TRUE", "ACTIVE", "DETECTED":
		return true, nil
	case "OFF", "CLOSED", "FALSE", "INACTIVE", "CLEAR":
		return false, nil
	}

	return false, fmt.Errorf("unrecognized sensor payload %q", text)
}
