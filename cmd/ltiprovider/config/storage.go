package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/storage"
	"github.com/go-lti/ltiprovider/storage/model"
)

type storageConf struct {
	Driver          storage.DriverType `yaml:"driver"`
	DataDir         string             `yaml:"data_dir"`
	DSN             string             `yaml:"dsn"`
	storage.DSNConf `yaml:",inline"`
	Debug           bool `yaml:"debug"`
}

func (c *storageConf) validate() error {
	if c.Driver == storage.DriverSQLite {
		if c.DataDir == "" && c.DSN == "" {
			return errors.New("error in storage conf: data_dir must be specified")
		}
		return nil
	}
	var err error
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	Driver: storage.DriverSQLite,
	DSNConf: storage.DSNConf{
		User: "ltiprovider",
		Host: "localhost",
		DB:   "ltiprovider",
	},
}

// nonceConf selects where used nonces are recorded
//
// YAML example:
//
//	nonces:
//	  backend: redis
//	  redis_addr: localhost:6379
type nonceConf struct {
	storage.NonceConfig `yaml:",inline"`
}

func (c *nonceConf) validate() error {
	switch c.Backend {
	case "", storage.NonceBackendDatabase:
		return nil
	case storage.NonceBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("error in nonce conf: redis_addr must be specified")
		}
	case storage.NonceBackendBadger:
		if c.BadgerDir == "" {
			return errors.New("error in nonce conf: badger_dir must be specified")
		}
	default:
		return errors.Errorf("error in nonce conf: unsupported backend '%s'", c.Backend)
	}
	return nil
}

var defaultNonceConf = nonceConf{
	NonceConfig: storage.NonceConfig{
		Backend: storage.NonceBackendDatabase,
	},
}

// LoadStorageBackends loads and returns the storage backends for the passed Config
func LoadStorageBackends(c Config) (model.Backends, error) {
	cfg := storage.Config{
		Driver:    c.Storage.Driver,
		DSN:       c.Storage.DSN,
		DataDir:   c.Storage.DataDir,
		Debug:     c.Storage.Debug,
		UsersHash: c.API.Admin.Argon2idParams,
		Nonces:    c.Nonces.NonceConfig,
	}
	backs, err := storage.LoadStorageBackends(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	log.WithField("driver", cfg.Driver).WithField("nonces", cfg.Nonces.Backend).Info("Loaded storage backend")
	return backs, nil
}
