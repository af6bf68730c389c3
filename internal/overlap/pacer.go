package overlap

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SeedPacingConfig describes the pacing characteristics applied between seed fetches.
type SeedPacingConfig struct {
	BaseDelay       time.Duration
	Jitter          time.Duration
	BurstSize       int
	BurstRest       time.Duration
	BurstRestJitter time.Duration
	RandomGenerator *rand.Rand
}

// SeedPacer spaces out sequential seed fetches with a base delay, optional
// jitter, and an optional longer rest after each burst of fetches.
type SeedPacer struct {
	baseDelay       time.Duration
	jitter          time.Duration
	burstSize       int
	burstRest       time.Duration
	burstRestJitter time.Duration

	randomGenerator *rand.Rand
	mutex           sync.Mutex
	processed       int
}

// NewSeedPacer constructs a SeedPacer from configuration values.
func NewSeedPacer(configuration SeedPacingConfig) *SeedPacer {
	baseDelay := configuration.BaseDelay
	if baseDelay < 0 {
		baseDelay = 0
	}
	burstRest := configuration.BurstRest
	if burstRest < 0 {
		burstRest = 0
	}
	randomGenerator := configuration.RandomGenerator
	if randomGenerator == nil {
		randomGenerator = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &SeedPacer{
		baseDelay:       baseDelay,
		jitter:          configuration.Jitter,
		burstSize:       configuration.BurstSize,
		burstRest:       burstRest,
		burstRestJitter: configuration.BurstRestJitter,
		randomGenerator: randomGenerator,
	}
}

// WaitBeforeNext blocks until the next seed fetch may start or the context ends.
func (pacer *SeedPacer) WaitBeforeNext(ctx context.Context) error {
	delayDuration, restDuration := pacer.nextWaits()
	if err := waitForDuration(ctx, delayDuration); err != nil {
		return err
	}
	return waitForDuration(ctx, restDuration)
}

func (pacer *SeedPacer) nextWaits() (time.Duration, time.Duration) {
	pacer.mutex.Lock()
	defer pacer.mutex.Unlock()

	pacer.processed++

	delayDuration := pacer.sampleDuration(pacer.baseDelay, pacer.jitter)
	var restDuration time.Duration
	if pacer.burstSize > 0 && pacer.processed%pacer.burstSize == 0 {
		restDuration = pacer.sampleDuration(pacer.burstRest, pacer.burstRestJitter)
	}
	return delayDuration, restDuration
}

func (pacer *SeedPacer) sampleDuration(baseDuration time.Duration, jitter time.Duration) time.Duration {
	if baseDuration < 0 {
		baseDuration = 0
	}
	if jitter <= 0 {
		return baseDuration
	}

	offset := (pacer.randomGenerator.Float64()*2 - 1) * float64(jitter)
	sampled := time.Duration(float64(baseDuration) + offset)
	if sampled < 0 {
		return 0
	}
	return sampled
}

func waitForDuration(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
