package config

// eventsConf configures where launch and outcome events are published; events
// are dropped if no amqp url is set
type eventsConf struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

// Enabled reports whether an event broker is configured
func (c eventsConf) Enabled() bool {
	return c.AMQPURL != ""
}

var defaultEventsConf = eventsConf{}
