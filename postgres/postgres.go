package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgtype"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lukasz-zimnoch/sanad/trading"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Config struct {
	Address  string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c *Config) url() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Address,
		c.Name,
		c.SSLMode,
	)
}

type Client struct {
	mutex    sync.RWMutex
	database *sqlx.DB
	logger   trading.Logger
}

func NewClient(
	ctx context.Context,
	config *Config,
	logger trading.Logger,
) (*Client, error) {
	database, err := connectDatabase(config)
	if err != nil {
		return nil, err
	}

	client := &Client{
		database: database,
		logger:   logger.WithField("component", "postgres"),
	}

	go client.monitorDatabaseMode(ctx, config)

	return client, nil
}

func connectDatabase(config *Config) (*sqlx.DB, error) {
	database, err := sqlx.Connect("pgx", config.url())
	if err != nil {
		return nil, fmt.Errorf("could not connect database: [%v]", err)
	}

	return database, nil
}

// monitorDatabaseMode reconnects when the connected instance has been
// demoted to a read-only replica after a failover.
func (c *Client) monitorDatabaseMode(ctx context.Context, config *Config) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var isReadonly bool
			err := c.instance().Get(&isReadonly, "SELECT pg_is_in_recovery()")
			if err != nil {
				c.logger.Errorf(
					"could not determine database mode: [%v]",
					err,
				)
				continue
			}

			if isReadonly {
				c.logger.Warningf(
					"database instance demoted to read-only mode; " +
						"reconnecting master database",
				)

				newDatabase, err := connectDatabase(config)
				if err != nil {
					c.logger.Errorf(
						"could not reconnect master database: [%v]",
						err,
					)
					continue
				}

				c.mutex.Lock()
				_ = c.database.Close()
				c.database = newDatabase
				c.mutex.Unlock()

				c.logger.Infof("reconnected master database")
			}
		case <-ctx.Done():
			_ = c.instance().Close()
			return
		}
	}
}

func (c *Client) instance() *sqlx.DB {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.database
}

// RunMigration applies the schema migrations embedded in the binary.
func RunMigration(
	logger trading.Logger,
	config *Config,
) error {
	logger.Infof("starting postgres migration")

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: [%v]", err)
	}

	migration, err := migrate.NewWithSourceInstance("iofs", source, config.url())
	if err != nil {
		return fmt.Errorf("could not prepare migration: [%v]", err)
	}
	defer migration.Close()

	err = migration.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("postgres migration skipped as there are no changes")
			return nil
		}

		return err
	}

	logger.Infof("postgres migration performed successfully")

	return nil
}

func uint64ToNumeric(value uint64) (pgtype.Numeric, error) {
	var result pgtype.Numeric

	if err := result.Set(value); err != nil {
		return pgtype.Numeric{}, err
	}

	return result, nil
}

func numericToUint64(value pgtype.Numeric) (uint64, error) {
	var result uint64

	if err := value.AssignTo(&result); err != nil {
		return 0, err
	}

	return result, nil
}
