// Package ingestor is the location ingestor (component C7): it polls a
// managed API client for a character's current location and emits a
// movement event whenever the observed solar system changes.
//
// Grounded on jaytripper_esi/src/location_ingestor.rs for the jitter and
// exponential-backoff formulas and the PRNG seed constant, and on
// sanket-sapate-arc-core/apps/discovery-service/internal/worker/scan_poller.go
// for the select-over-channels poll/sleep loop shape and its structured
// zap logging.
package ingestor

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/internal/esiclient"
	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
)

// seedXor is XORed with a character ID to seed that character's poll
// jitter PRNG, carried verbatim from jaytripper_esi's location_ingestor.rs.
const seedXor = 0xD1CE_F00D

// LocationPollConfig parameterizes one character's poll loop.
type LocationPollConfig struct {
	BaseInterval             time.Duration
	JitterFactor             float64
	ApiFailureBackoffInitial time.Duration
	ApiFailureBackoffMax     time.Duration
}

// DefaultLocationPollConfig returns the default poll parameters.
func DefaultLocationPollConfig() LocationPollConfig {
	return LocationPollConfig{
		BaseInterval:             5 * time.Second,
		JitterFactor:             0.2,
		ApiFailureBackoffInitial: time.Second,
		ApiFailureBackoffMax:     30 * time.Second,
	}
}

func (c LocationPollConfig) clampedJitter() float64 {
	switch {
	case c.JitterFactor < 0:
		return 0
	case c.JitterFactor > 1:
		return 1
	default:
		return c.JitterFactor
	}
}

// LocationClient is the subset of esiclient.Client the ingestor depends
// on.
type LocationClient interface {
	CharacterID() ids.CharacterID
	GetCurrentLocation(ctx context.Context) (esiclient.CharacterLocation, error)
}

// Clock abstracts wall-clock time for tests.
type Clock interface {
	Now() ids.Timestamp
}

type systemClock struct{}

func (systemClock) Now() ids.Timestamp { return ids.Now() }

// Metrics is the last-observed poll health, read by operational
// tooling.
type Metrics struct {
	LastSuccessAt   *ids.Timestamp
	LastPollLatency time.Duration
}

// Ingestor runs one character's location poll loop.
type Ingestor struct {
	client LocationClient
	sink   events.MovementSink
	config LocationPollConfig
	clock  Clock
	logger *zap.Logger
	rng    *rand.Rand

	lastLocation           *esiclient.CharacterLocation
	apiConsecutiveFailures uint32
	metrics                Metrics
}

// Option configures an Ingestor at construction time.
type Option func(*Ingestor)

func WithClock(clock Clock) Option { return func(i *Ingestor) { i.clock = clock } }

func WithLogger(logger *zap.Logger) Option { return func(i *Ingestor) { i.logger = logger } }

// New builds an Ingestor for one character. The PRNG is deterministically
// seeded from the character ID so poll jitter is reproducible per
// character across restarts.
func New(client LocationClient, sink events.MovementSink, config LocationPollConfig, opts ...Option) *Ingestor {
	seed := int64(uint64(client.CharacterID()) ^ seedXor)
	ing := &Ingestor{
		client: client,
		sink:   sink,
		config: config,
		clock:  systemClock{},
		logger: zap.NewNop(),
		rng:    rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

func (i *Ingestor) Metrics() Metrics { return i.metrics }

// RunUntilShutdown drives the poll loop until shutdownCh closes or a
// terminal error occurs.
func (i *Ingestor) RunUntilShutdown(ctx context.Context, shutdownCh <-chan struct{}) error {
	for {
		select {
		case <-shutdownCh:
			return nil
		default:
		}

		outcome, sleepAfter := i.pollOnceRacingShutdown(ctx, shutdownCh)
		if outcome.shutdown {
			return nil
		}
		if outcome.terminalErr != nil {
			i.logger.Error("location ingestion stopped", zap.Error(outcome.terminalErr))
			return outcome.terminalErr
		}

		if !i.sleepOrShutdown(sleepAfter, shutdownCh) {
			return nil
		}
	}
}

type pollOutcome struct {
	shutdown    bool
	terminalErr error
}

func (i *Ingestor) pollOnceRacingShutdown(ctx context.Context, shutdownCh <-chan struct{}) (pollOutcome, time.Duration) {
	type result struct {
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		resultCh <- result{err: i.pollOnce(ctx)}
	}()

	select {
	case <-shutdownCh:
		return pollOutcome{shutdown: true}, 0
	case res := <-resultCh:
		return i.dispatch(res.err)
	}
}

func (i *Ingestor) dispatch(err error) (pollOutcome, time.Duration) {
	if err == nil {
		i.apiConsecutiveFailures = 0
		return pollOutcome{}, i.jitteredInterval()
	}

	if errkind.Is(err, errkind.NeedsReauth) {
		return pollOutcome{terminalErr: err}, 0
	}
	if errkind.Is(err, errkind.SinkFailure) {
		return pollOutcome{terminalErr: err}, 0
	}

	if i.apiConsecutiveFailures < ^uint32(0) {
		i.apiConsecutiveFailures++
	}
	i.logger.Warn("location poll failed, backing off", zap.Error(err), zap.Uint32("consecutive_failures", i.apiConsecutiveFailures))
	return pollOutcome{}, i.backoffDelay()
}

func (i *Ingestor) jitteredInterval() time.Duration {
	jitter := i.config.clampedJitter()
	low := 1 - jitter
	high := 1 + jitter
	factor := low + i.rng.Float64()*(high-low)
	return time.Duration(float64(i.config.BaseInterval) * factor)
}

func (i *Ingestor) backoffDelay() time.Duration {
	attempts := i.apiConsecutiveFailures
	if attempts == 0 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 31 {
		shift = 31
	}
	delay := i.config.ApiFailureBackoffInitial * time.Duration(uint64(1)<<shift)
	if delay > i.config.ApiFailureBackoffMax || delay <= 0 {
		delay = i.config.ApiFailureBackoffMax
	}
	return delay
}

// pollOnce fetches the current location, emitting a movement event when
// the solar system changed since the last poll.
func (i *Ingestor) pollOnce(ctx context.Context) error {
	pollStartedAt := time.Now()
	location, err := i.client.GetCurrentLocation(ctx)
	if err != nil {
		return err
	}
	i.metrics.LastPollLatency = time.Since(pollStartedAt)

	observedAt := i.clock.Now()

	changed := i.lastLocation == nil || i.lastLocation.SolarSystemID != location.SolarSystemID
	if changed {
		var fromSystemID *ids.SolarSystemID
		if i.lastLocation != nil {
			system := i.lastLocation.SolarSystemID
			fromSystemID = &system
		}

		event := events.MovementEvent{
			CharacterID:  i.client.CharacterID(),
			FromSystemID: fromSystemID,
			ToSystemID:   location.SolarSystemID,
			ObservedAt:   observedAt,
			Source:       events.SourceEsi,
		}

		if err := i.sink.EmitMovement(event); err != nil {
			return errkind.Wrap("ingestor.pollOnce", errkind.SinkFailure, err)
		}
	}

	i.metrics.LastSuccessAt = &observedAt
	locationCopy := location
	i.lastLocation = &locationCopy
	return nil
}

func (i *Ingestor) sleepOrShutdown(d time.Duration, shutdownCh <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-shutdownCh:
		return false
	case <-timer.C:
		return true
	}
}
