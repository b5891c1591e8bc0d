package main

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/lukasz-zimnoch/sanad/trading/logrus"
	"github.com/lukasz-zimnoch/sanad/trading/postgres"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "trading",
		Usage: "trading account program with fee-charging trade execution",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the transaction API and the event relay",
				Action: serveAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply postgres schema migrations",
				Action: migrateAction,
			},
			{
				Name:      "address",
				Usage:     "print the trading account address of an owner",
				ArgsUsage: "<owner>",
				Action:    addressAction,
			},
			{
				Name:   "keygen",
				Usage:  "generate a new signing key pair",
				Action: keygenAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*Config, trading.Logger, error) {
	config, err := readConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("could not read config: [%v]", err)
	}

	logger := logrus.ConfigureStandardLogger(
		config.Logging.Format,
		config.Logging.Level,
		logrus.FileOutput{
			Path:       config.Logging.File,
			MaxSizeMB:  config.Logging.FileMaxSizeMB,
			MaxBackups: config.Logging.FileMaxBackups,
			MaxAgeDays: config.Logging.FileMaxAgeDays,
			Compress:   config.Logging.FileCompress,
		},
	)

	return config, logger, nil
}

func migrateAction(c *cli.Context) error {
	config, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	return postgres.RunMigration(logger, postgresConfig(&config.Database))
}

func addressAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one owner address", 2)
	}

	config, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	programID, err := solana.PublicKeyFromBase58(config.Program.ID)
	if err != nil {
		return fmt.Errorf("could not parse program id: [%v]", err)
	}

	owner, err := solana.PublicKeyFromBase58(c.Args().First())
	if err != nil {
		return fmt.Errorf("could not parse owner: [%v]", err)
	}

	address, bump, err := trading.DeriveAccountAddress(programID, owner)
	if err != nil {
		return fmt.Errorf("could not derive address: [%v]", err)
	}

	fmt.Fprintf(c.App.Writer, "address: %v\nbump:    %v\n", address, bump)

	return nil
}

func keygenAction(c *cli.Context) error {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return fmt.Errorf("could not generate key: [%v]", err)
	}

	fmt.Fprintf(
		c.App.Writer,
		"public key:  %v\nprivate key: %v\n",
		key.PublicKey(),
		key,
	)

	return nil
}

func postgresConfig(config *Database) *postgres.Config {
	return &postgres.Config{
		Address:  config.Address,
		User:     config.User,
		Password: config.Password,
		Name:     config.Name,
		SSLMode:  config.SSLMode,
	}
}
