package main

import (
	"time"

	"github.com/sherifabdlnaby/configuro"
)

// Config values can be set using either environment variables with `CONFIG_`
// prefix or config.yml file placed in working directory.
// See https://github.com/sherifabdlnaby/configuro.
type Config struct {
	Logging  Logging
	Storage  Storage
	Database Database
	Badger   Badger
	Program  Program
	API      API
	Relay    Relay
	PubSub   PubSub
	Mail     Mail
	Faucet   Faucet
}

type Logging struct {
	Level  string
	Format string

	// File enables an additional rotating log file.
	File           string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
	FileCompress   bool
}

type Storage struct {
	Driver string `validate:"oneof=inmem badger postgres"`
}

type Database struct {
	Address   string
	User      string
	Password  string
	Name      string
	SSLMode   string
	Migration bool
}

type Badger struct {
	// Dir is the data directory; empty keeps the database in memory.
	Dir string
}

type Program struct {
	ID string
}

type API struct {
	Address        string
	TransactionTTL time.Duration
}

type Relay struct {
	Interval  time.Duration
	BatchSize int
}

type PubSub struct {
	ProjectID string
	TopicID   string
}

type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type Faucet struct {
	Enabled bool
}

func readConfig(path string) (*Config, error) {
	var options []configuro.ConfigOptions
	if len(path) > 0 {
		options = append(options, configuro.WithLoadFromConfigFile(path, true))
	}

	loader, err := configuro.NewConfig(options...)
	if err != nil {
		return nil, err
	}

	// Default config values.
	config := &Config{
		Logging: Logging{
			Level:          "info",
			Format:         "text",
			FileMaxSizeMB:  100,
			FileMaxBackups: 5,
			FileMaxAgeDays: 30,
		},
		Storage: Storage{
			Driver: "inmem",
		},
		Database: Database{
			Address:  "localhost:5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "postgres",
			SSLMode:  "disable",
		},
		Program: Program{
			ID: "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
		},
		API: API{
			Address:        ":8080",
			TransactionTTL: 2 * time.Minute,
		},
		Relay: Relay{
			Interval:  5 * time.Second,
			BatchSize: 100,
		},
		PubSub: PubSub{
			TopicID: "trades",
		},
		Mail: Mail{
			Host: "smtp.gmail.com",
			Port: 587,
		},
	}

	err = loader.Load(config)
	if err != nil {
		return nil, err
	}

	err = loader.Validate(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
