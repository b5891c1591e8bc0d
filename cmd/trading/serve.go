package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/lukasz-zimnoch/sanad/trading/api"
	"github.com/lukasz-zimnoch/sanad/trading/badger"
	"github.com/lukasz-zimnoch/sanad/trading/daemon"
	"github.com/lukasz-zimnoch/sanad/trading/inmem"
	"github.com/lukasz-zimnoch/sanad/trading/instruction"
	"github.com/lukasz-zimnoch/sanad/trading/mail"
	"github.com/lukasz-zimnoch/sanad/trading/postgres"
	"github.com/lukasz-zimnoch/sanad/trading/pubsub"
	"github.com/lukasz-zimnoch/sanad/trading/uuid"
	"github.com/urfave/cli/v2"
)

func serveAction(c *cli.Context) error {
	config, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancelCtx := signal.NotifyContext(
		c.Context,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancelCtx()

	programID, err := solana.PublicKeyFromBase58(config.Program.ID)
	if err != nil {
		return fmt.Errorf("could not parse program id: [%v]", err)
	}

	idService := &uuid.IDService{}

	store, closeStore, err := openStore(ctx, logger, config, idService)
	if err != nil {
		return err
	}
	defer closeStore()

	manager := trading.NewAccountManager(
		programID,
		store,
		&trading.TokenProgram{},
		trading.SystemClock{},
		idService,
		logger,
	)

	publishers, closePublishers, err := eventPublishers(ctx, logger, config)
	if err != nil {
		return err
	}
	defer closePublishers()

	if len(publishers) > 0 {
		stopRelay := startRelay(ctx, logger, store, publishers, &config.Relay)

		// Deferred last, so it runs before the publishers and the store
		// are closed.
		defer stopRelay()
	} else {
		logger.Warningf("no event publishers configured; events stay pending")
	}

	var faucet *trading.Faucet
	if config.Faucet.Enabled {
		logger.Warningf("faucet is enabled; do not use on production")
		faucet = trading.NewFaucet(store, &trading.TokenProgram{}, logger)
	}

	processor := instruction.NewProcessor(
		manager,
		trading.SystemClock{},
		config.API.TransactionTTL,
		logger,
	)

	logger.Infof(
		"serving program [%v] on [%v] with [%v] storage",
		programID,
		config.API.Address,
		config.Storage.Driver,
	)

	return api.NewServer(processor, manager, store, faucet, logger).
		Run(ctx, config.API.Address)
}

// startRelay runs the event relay and returns a function stopping it. The
// function returns once the relay no longer touches the event log.
func startRelay(
	ctx context.Context,
	logger trading.Logger,
	eventLog trading.EventLog,
	publisher trading.EventService,
	config *Relay,
) func() {
	ctx, cancelCtx := context.WithCancel(ctx)

	relay := daemon.RunEventRelay(
		ctx,
		logger,
		eventLog,
		publisher,
		config.Interval,
		config.BatchSize,
	)

	return func() {
		cancelCtx()
		<-relay.Done()
	}
}

func openStore(
	ctx context.Context,
	logger trading.Logger,
	config *Config,
	idService trading.IDService,
) (trading.Store, func(), error) {
	switch config.Storage.Driver {
	case "badger":
		store, err := badger.NewStore(
			&badger.Config{Dir: config.Badger.Dir},
			idService,
			logger,
		)
		if err != nil {
			return nil, nil, err
		}

		return store, func() {
			if err := store.Close(); err != nil {
				logger.Errorf("could not close badger store: [%v]", err)
			}
		}, nil
	case "postgres":
		client, err := connectPostgres(ctx, logger, &config.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect postgres: [%v]", err)
		}

		return postgres.NewStore(client, idService), func() {}, nil
	default:
		logger.Warningf("using in-memory storage; state is lost on exit")
		return inmem.NewStore(), func() {}, nil
	}
}

func connectPostgres(
	ctx context.Context,
	logger trading.Logger,
	config *Database,
) (*postgres.Client, error) {
	if config.Migration {
		if err := postgres.RunMigration(logger, postgresConfig(config)); err != nil {
			return nil, fmt.Errorf("could not run migration: [%v]", err)
		}
	}

	return postgres.NewClient(ctx, postgresConfig(config), logger)
}

func eventPublishers(
	ctx context.Context,
	logger trading.Logger,
	config *Config,
) (trading.EventServices, func(), error) {
	publishers := make(trading.EventServices, 0)
	closers := make([]func(), 0)

	closeAll := func() {
		for _, closer := range closers {
			closer()
		}
	}

	if len(config.PubSub.ProjectID) > 0 {
		client, err := pubsub.NewClient(
			ctx,
			config.PubSub.ProjectID,
			config.PubSub.TopicID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect pubsub: [%v]", err)
		}

		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Errorf("could not close pubsub client: [%v]", err)
			}
		})
		publishers = append(publishers, pubsub.NewEventService(client, logger))
	}

	if len(config.Mail.To) > 0 {
		publishers = append(publishers, mail.NewEventService(
			&mail.Config{
				Host:     config.Mail.Host,
				Port:     config.Mail.Port,
				Username: config.Mail.Username,
				Password: config.Mail.Password,
				From:     config.Mail.From,
				To:       config.Mail.To,
			},
			logger,
		))
	}

	return publishers, closeAll, nil
}
