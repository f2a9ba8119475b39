package mqtt

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"home-sentinel/internal/config"
	domain "home-sentinel/internal/domain/security"
	"home-sentinel/internal/imaging"
	"home-sentinel/internal/repository/state"
	"home-sentinel/internal/service/security"
)

// mockClient records publishes and subscriptions without a broker.
type mockClient struct {
	mu             sync.Mutex
	publishCalls   []publishCall
	subscribeCalls []subscribeCall
	connected      bool
}

type publishCall struct {
	Payload  interface{}
	Topic    string
	QoS      byte
	Retained bool
}

type subscribeCall struct {
	Handler pahomqtt.MessageHandler
	Topic   string
	QoS     byte
}

func (m *mockClient) IsConnected() bool       { return m.connected }
func (m *mockClient) IsConnectionOpen() bool  { return m.connected }
func (m *mockClient) Disconnect(quiesce uint) { m.connected = false }

func (m *mockClient) Connect() pahomqtt.Token {
	m.connected = true

	return &mockToken{}
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.publishCalls = append(m.publishCalls, publishCall{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  payload,
	})

	return &mockToken{}
}

func (m *mockClient) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribeCalls = append(m.subscribeCalls, subscribeCall{
		Topic:   topic,
		QoS:     qos,
		Handler: callback,
	})

	return &mockToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return &mockToken{}
}

func (m *mockClient) Unsubscribe(...string) pahomqtt.Token { return &mockToken{} }

func (m *mockClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (m *mockClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (m *mockClient) published() []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]publishCall(nil), m.publishCalls...)
}

func (m *mockClient) subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := make([]string, 0, len(m.subscribeCalls))
	for _, call := range m.subscribeCalls {
		topics = append(topics, call.Topic)
	}

	return topics
}

type mockToken struct {
	err error
}

func (m *mockToken) Wait() bool                     { return true }
func (m *mockToken) WaitTimeout(time.Duration) bool { return true }
func (m *mockToken) Error() error                   { return m.err }

func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func testConfig() *config.Config {
	cfg := &config.Config{
		BrokerURI: "tcp://127.0.0.1:1883",
		Sensors: []config.SensorTopic{
			{Name: "front door", Type: domain.SensorTypeDoor, Topic: "sensors/front_door"},
			{Name: "hallway motion", Type: domain.SensorTypeMotion, Topic: "sensors/hallway"},
		},
		CameraTopic: "camera/frame",
	}
	if err := config.Validate(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// newTestBridge wires a bridge with a real controller over an in-memory
// store, a static detector and a mock broker client.
func newTestBridge(t *testing.T, cat bool) (*Bridge, *security.Service, *mockClient, *imaging.StaticDetector) {
	t.Helper()

	cfg := testConfig()
	detector := imaging.NewStaticDetector(cat)
	svc := security.NewService(state.NewMemoryRepository(), detector)

	ctx := context.Background()
	for _, def := range cfg.Sensors {
		require.NoError(t, svc.AddSensor(ctx, domain.NewSensor(def.Name, def.Type)))
	}

	client := &mockClient{connected: true}
	bridge := NewBridge(ctx, cfg, svc)
	bridge.client = client

	return bridge, svc, client, detector
}

func TestParseActivity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		payload string
		active  bool
		wantErr bool
	}{
		{payload: "ON", active: true},
		{payload: "on", active: true},
		{payload: "OPEN", active: true},
		{payload: "1", active: true},
		{payload: "42", active: true},
		{payload: " true \n", active: true},
		{payload: "DETECTED", active: true},
		{payload: "OFF", active: false},
		{payload: "CLOSED", active: false},
		{payload: "0", active: false},
		{payload: "false", active: false},
		{payload: "CLEAR", active: false},
		{payload: "banana", wantErr: true},
		{payload: "", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.payload, func(t *testing.T) {
			t.Parallel()

			active, err := parseActivity([]byte(tc.payload))
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.active, active)
		})
	}
}

func TestBridgeSensorMessage(t *testing.T) {
	t.Parallel()

	bridge, svc, _, _ := newTestBridge(t, false)
	ctx := context.Background()

	require.NoError(t, svc.SetArmingStatus(ctx, domain.ArmingStatusArmedAway))

	bridge.handleSensorMessage(nil, &mockMessage{topic: "sensors/front_door", payload: []byte("OPEN")})

	status, err := svc.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusPending, status)

	sensors, err := svc.Sensors(ctx)
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	for _, sensor := range sensors {
		if sensor.Name == "front door" {
			require.True(t, sensor.Active)
		}
	}

	// Closing the door again stands the pending alarm down.
	bridge.handleSensorMessage(nil, &mockMessage{topic: "sensors/front_door", payload: []byte("CLOSED")})

	status, err = svc.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusNoAlarm, status)
}

func TestBridgeSensorMessageBadPayload(t *testing.T) {
	t.Parallel()

	bridge, svc, _, _ := newTestBridge(t, false)
	ctx := context.Background()

	require.NoError(t, svc.SetArmingStatus(ctx, domain.ArmingStatusArmedAway))

	bridge.handleSensorMessage(nil, &mockMessage{topic: "sensors/front_door", payload: []byte("garbage")})
	bridge.handleSensorMessage(nil, &mockMessage{topic: "sensors/unknown", payload: []byte("ON")})

	status, err := svc.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusNoAlarm, status)
}

func TestBridgeCommandMessage(t *testing.T) {
	t.Parallel()

	bridge, svc, _, _ := newTestBridge(t, false)
	ctx := context.Background()

	bridge.handleCommandMessage(nil, &mockMessage{
		topic:   bridge.cfg.CommandTopic,
		payload: []byte("armed_home"),
	})

	arming, err := svc.ArmingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusArmedHome, arming)

	// Unknown commands are ignored.
	bridge.handleCommandMessage(nil, &mockMessage{
		topic:   bridge.cfg.CommandTopic,
		payload: []byte("panic"),
	})

	arming, err = svc.ArmingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ArmingStatusArmedHome, arming)
}

func TestBridgeCameraMessage(t *testing.T) {
	t.Parallel()

	bridge, svc, _, detector := newTestBridge(t, true)
	ctx := context.Background()

	detector.SetAnswer(true, 0.9)
	require.NoError(t, svc.SetArmingStatus(ctx, domain.ArmingStatusArmedHome))

	var frame bytes.Buffer
	require.NoError(t, jpeg.Encode(&frame, image.NewRGBA(image.Rect(0, 0, 16, 16)), nil))

	bridge.handleCameraMessage(nil, &mockMessage{topic: "camera/frame", payload: frame.Bytes()})

	status, err := svc.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusAlarm, status)

	// Undecodable frames are dropped without touching the controller.
	require.NoError(t, svc.SetAlarmStatus(ctx, domain.AlarmStatusNoAlarm))
	bridge.handleCameraMessage(nil, &mockMessage{topic: "camera/frame", payload: []byte("not a jpeg")})

	status, err = svc.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AlarmStatusNoAlarm, status)
}

func TestBridgeOnConnect(t *testing.T) {
	t.Parallel()

	bridge, _, client, _ := newTestBridge(t, false)

	bridge.onConnect(client)

	topics := bridge.cfg
	require.ElementsMatch(t, []string{
		"sensors/front_door",
		"sensors/hallway",
		topics.CameraTopic,
		topics.CommandTopic,
	}, client.subscribed())

	published := client.published()
	require.NotEmpty(t, published)
	require.Equal(t, topics.AvailabilityTopic, published[0].Topic)
	require.Equal(t, payloadOnline, published[0].Payload)

	// Current alarm status and cat flag are republished retained.
	byTopic := make(map[string]publishCall, len(published))
	for _, call := range published {
		byTopic[call.Topic] = call
	}

	require.Equal(t, string(domain.AlarmStatusNoAlarm), byTopic[topics.StatusTopic].Payload)
	require.True(t, byTopic[topics.StatusTopic].Retained)
	require.Equal(t, "false", byTopic[topics.CatTopic].Payload)
}

func TestBridgePublishesStatusChanges(t *testing.T) {
	t.Parallel()

	bridge, svc, client, _ := newTestBridge(t, false)
	ctx := context.Background()

	svc.AddStatusListener(bridge)
	svc.AddCatDetectionListener(bridge)

	require.NoError(t, svc.ProcessImage(ctx, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	require.NoError(t, svc.SetAlarmStatus(ctx, domain.AlarmStatusPending))

	require.Eventually(t, func() bool {
		byTopic := make(map[string]publishCall)
		for _, call := range client.published() {
			byTopic[call.Topic] = call
		}

		status, ok := byTopic[bridge.cfg.StatusTopic]
		if !ok || status.Payload != string(domain.AlarmStatusPending) {
			return false
		}

		cat, ok := byTopic[bridge.cfg.CatTopic]

		return ok && cat.Payload == "false"
	}, time.Second, 10*time.Millisecond)
}
