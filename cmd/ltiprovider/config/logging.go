package config

import (
	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/go-lti/ltiprovider/internal/logger"
)

// loggingConf holds all logging-related configuration under the `logging` key.
//
// YAML example:
//
//	logging:
//	  access:
//	    dir: /var/log/ltiprovider
//	    stderr: false
//	  internal:
//	    dir: /var/log/ltiprovider
//	    stderr: false
//	    level: INFO
//	    smart:
//	      enabled: false
//	      dir: /var/log/ltiprovider/smart
type loggingConf struct {
	Access   logger.LoggerConf   `yaml:"access"`
	Internal logger.InternalConf `yaml:"internal"`
}

func checkLoggingDirExists(dir string) error {
	if dir != "" && !fileutils.FileExists(dir) {
		return errors.Errorf("logging directory '%s' does not exist", dir)
	}
	return nil
}

func (log *loggingConf) validate() error {
	if err := checkLoggingDirExists(log.Access.Dir); err != nil {
		return err
	}
	if err := checkLoggingDirExists(log.Internal.Dir); err != nil {
		return err
	}
	if log.Internal.Smart.Enabled {
		if log.Internal.Smart.Dir == "" {
			log.Internal.Smart.Dir = log.Internal.Dir
		}
		if err := checkLoggingDirExists(log.Internal.Smart.Dir); err != nil {
			return err
		}
	}
	return nil
}

// LoggerConfig returns the configuration for logger.Init
func (log loggingConf) LoggerConfig() logger.Config {
	return logger.Config{
		Access:   log.Access,
		Internal: log.Internal,
	}
}

var defaultLoggingConf = loggingConf{
	Internal: logger.InternalConf{
		Level: "INFO",
	},
}
