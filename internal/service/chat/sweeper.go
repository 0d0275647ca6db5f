package chat

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically evicts idle sessions from a Store.
type Sweeper struct {
	cron   *cron.Cron
	store  *Store
	logger zerolog.Logger
}

// NewSweeper schedules an eviction pass every interval. cron schedules have one-second
// resolution, so shorter intervals are rejected.
func NewSweeper(store *Store, interval time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("sweep interval %s is below one second", interval)
	}

	logger = logger.With().Str("component", "sweeper").Logger()
	s := &Sweeper{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}))),
		store:  store,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.sweep); err != nil {
		return nil, fmt.Errorf("schedule eviction sweep: %w", err)
	}
	return s, nil
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop cancels future sweeps and waits for a running one to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	evicted := s.store.EvictStale(s.store.now())
	s.logger.Debug().Int("evicted", evicted).Msg("sweep finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
