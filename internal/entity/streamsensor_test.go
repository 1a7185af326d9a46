package entity

import (
	"testing"
	"time"

	"rinconbridge/internal/bus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStream struct{ event string }

func (f *fakeStream) LastEvent() string { return f.event }

func TestStreamSensor_PublishesLastEventOnNotification(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	notifier := bus.NewNotifier(logger)
	sink := &recordingSink{}
	source := &fakeStream{}

	s := NewStreamSensor(source, notifier, sink, logger)
	require.NoError(t, s.Activate())
	defer s.Deactivate()

	// No initial publication: the sensor is empty until an event arrives.
	assert.Equal(t, 0, sink.count())

	source.event = "table 4 seated"
	notifier.Publish()

	require.Eventually(t, func() bool {
		return sink.count() == 1
	}, 2*time.Second, 5*time.Millisecond)

	pub := sink.last()
	assert.Equal(t, "elrincondelola_api", pub.uniqueID)
	assert.Equal(t, "table 4 seated", pub.state)
}

func TestStreamSensor_DeactivateStopsDelivery(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	notifier := bus.NewNotifier(logger)
	sink := &recordingSink{}

	s := NewStreamSensor(&fakeStream{event: "x"}, notifier, sink, logger)
	require.NoError(t, s.Activate())
	s.Deactivate()

	notifier.Publish()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
}

func TestStreamSensor_ActivateTwiceFails(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	notifier := bus.NewNotifier(logger)

	s := NewStreamSensor(&fakeStream{}, notifier, &recordingSink{}, logger)
	require.NoError(t, s.Activate())
	defer s.Deactivate()

	assert.Error(t, s.Activate())
}
