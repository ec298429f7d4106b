package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wordclash/internal/challenge"
	"wordclash/internal/core"
	"wordclash/internal/core/data"
	"wordclash/internal/core/debug"
	"wordclash/internal/dictionary"
	"wordclash/internal/friends"
	"wordclash/internal/registration"
	"wordclash/internal/server"
	"wordclash/internal/server/game"
	"wordclash/internal/session"
	"wordclash/internal/translate"
)

// Controller is the main entrypoint for wordclash. It's responsible for
// initializing the shared resources (database, logging, the translation
// pool), wiring the managers together, and launching the servers.
type Controller struct {
	Config *core.Config

	logger   *logrus.Logger
	db       *gorm.DB
	pool     *translate.Pool
	notifier *session.Notifier
}

func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(c.logger, c.Config.Debugging.PprofPort)
	}

	dataSource := c.Config.Database.File
	if c.Config.Database.Engine == data.EnginePostgres {
		dataSource = c.Config.DatabaseURL()
	}
	c.db, err = data.Initialize(c.Config.Database.Engine, dataSource, c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer func() {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Errorf("error closing database: %v", err)
		}
	}()

	words, err := dictionary.Load(c.Config.Dictionary.Path)
	if err != nil {
		return fmt.Errorf("error loading dictionary: %w", err)
	}
	c.logger.Infof("loaded %d dictionary words", words.Len())

	translator := translate.NewClient(
		c.Config.Translation.Endpoint,
		c.Config.Translation.LangPair,
		time.Duration(c.Config.Translation.RequestTimeout)*time.Second,
		time.Duration(c.Config.Translation.CacheTTL)*time.Second,
	)
	c.pool = translate.NewPool(c.Config.Translation.Workers, translator.Lookup)
	defer c.pool.Shutdown()

	c.notifier, err = session.NewNotifier(c.logger)
	if err != nil {
		return fmt.Errorf("error starting notifier: %w", err)
	}
	defer c.notifier.Close()

	registry := session.NewRegistry(c.db, c.notifier, c.logger)

	friendManager, err := friends.NewManager(c.db)
	if err != nil {
		return fmt.Errorf("error initializing friendship manager: %w", err)
	}

	requests := challenge.NewRequestManager(c.Config.ChallengeRequestTimeout(), c.logger)
	engine := challenge.NewEngine(words, c.pool, challenge.Config{
		WordCount:   c.Config.Challenge.WordCount,
		Duration:    c.Config.ChallengeDuration(),
		Reward:      c.Config.Challenge.Reward,
		Penalty:     c.Config.Challenge.Penalty,
		WinnerBonus: c.Config.Challenge.WinnerBonus,
	}, c.logger)

	backend := game.NewBackend(c.db, registry, friendManager, requests, engine, c.logger)

	return c.run(ctx, backend)
}

// run launches the registration service, the game frontend, and the event
// consumer, then blocks until the context is canceled and everything has
// wound down.
func (c *Controller) run(ctx context.Context, backend *game.Backend) error {
	readyChan := make(chan bool)
	errChan := make(chan error)
	go registration.Start(ctx, c.logger, c.db, c.Config.RegistrationAddress(), readyChan, errChan)

	select {
	case <-readyChan:
	case err := <-errChan:
		return fmt.Errorf("error starting registration service: %w", err)
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for the registration service to initialize")
	}

	go backend.ConsumeEvents(ctx)

	frontend := &server.Frontend{
		Address: c.Config.GameAddress(),
		Backend: backend,
		Config:  c.Config,
		Logger:  c.logger,
	}

	wg := &sync.WaitGroup{}
	if err := frontend.Start(ctx, wg); err != nil {
		return fmt.Errorf("error starting game server: %w", err)
	}

	wg.Wait()
	return ctx.Err()
}
