package config

import (
	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"

	"github.com/go-lti/ltiprovider/service"
)

// servicesConf configures the client for the extension services of tool
// consumers
type servicesConf struct {
	Timeout duration.DurationOption `yaml:"timeout"`
}

func (c *servicesConf) validate() error {
	if c.Timeout.Duration() <= 0 {
		return errors.New("services timeout must be positive")
	}
	return nil
}

var defaultServicesConf = servicesConf{
	Timeout: duration.DurationOption(service.DefaultTimeout),
}
