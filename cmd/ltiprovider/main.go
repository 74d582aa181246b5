package main

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider"
	"github.com/go-lti/ltiprovider/cmd/ltiprovider/config"
	"github.com/go-lti/ltiprovider/events"
	"github.com/go-lti/ltiprovider/internal/logger"
	"github.com/go-lti/ltiprovider/internal/version"
	"github.com/go-lti/ltiprovider/oauth"
	"github.com/go-lti/ltiprovider/service"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	if err := logger.Init(c.Logging.LoggerConfig()); err != nil {
		log.WithError(err).Fatal("could not init logging")
	}
	log.WithField("version", version.VERSION).Info("Loaded Config")

	backs, err := config.LoadStorageBackends(c)
	if err != nil {
		log.Fatal(err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if c.Events.Enabled() {
		amqpPublisher := events.NewAMQPPublisher(c.Events.AMQPURL, c.Events.Queue)
		closeOnSignal(amqpPublisher)
		publisher = amqpPublisher
		log.WithField("queue", c.Events.Queue).Info("Publishing events to amqp")
	}

	signer := oauth.NewSigner()
	opts := []ltiprovider.Option{
		ltiprovider.WithAccessLog(logger.AccessLogWriter()),
		ltiprovider.WithPublisher(publisher),
		ltiprovider.WithSigner(signer),
		ltiprovider.WithServiceClient(
			service.NewClient(
				service.WithTimeout(c.Services.Timeout.Duration()),
				service.WithSigner(signer),
			),
		),
		ltiprovider.WithLaunchPath(c.Launch.Path),
		ltiprovider.WithSignatureMethods(c.OAuth.Methods()...),
		ltiprovider.WithReplayWindow(c.OAuth.TimestampWindow.Duration(), c.OAuth.NonceTTL.Duration()),
	}
	if c.API.Admin.Enabled {
		opts = append(opts, ltiprovider.WithAdminAPI(c.API.Admin.Options()))
	}
	tp, err := ltiprovider.NewToolProvider(c.Server, backs, opts...)
	if err != nil {
		log.Fatal(err)
	}
	tp.Message = c.Launch.Message
	tp.AllowSharing = c.Launch.AllowSharing
	tp.DefaultEmail = c.Launch.DefaultEmail

	h := launchHandler(c.Launch.RedirectURL)
	for _, messageType := range []string{
		ltiprovider.MessageBasicLaunch,
		ltiprovider.MessageConfigure,
		ltiprovider.MessageDashboard,
		ltiprovider.MessageContentItem,
	} {
		tp.Handle(messageType, h)
	}
	log.Info("Initialized Tool Provider")

	tp.Start()
}

// closeOnSignal flushes p and exits when the process is interrupted
func closeOnSignal(p *events.AMQPPublisher) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.WithField("signal", s.String()).Info("shutting down")
		if err := p.Close(); err != nil {
			log.WithError(err).Error("could not close event publisher")
		}
		os.Exit(0)
	}()
}

// launchHandler passes successful launches on to target. Without a target a
// short confirmation page is shown.
func launchHandler(target string) ltiprovider.Handler {
	return func(_ context.Context, l *ltiprovider.Launch) error {
		q := url.Values{}
		q.Set("consumer", l.Consumer.Key())
		q.Set("message_type", l.Request.MessageType())
		if l.ResourceLink != nil {
			q.Set("resource_link", l.ResourceLink.ID())
		}
		if l.User != nil {
			q.Set("user", l.User.ID())
		}
		if target == "" {
			l.SetResult(
				fmt.Sprintf(
					"<p>Launch of %s from %s accepted.</p>",
					html.EscapeString(l.Request.MessageType()), html.EscapeString(l.Consumer.Key()),
				),
			)
			return nil
		}
		u, err := url.Parse(target)
		if err != nil {
			return err
		}
		query := u.Query()
		for k, vs := range q {
			query[k] = vs
		}
		u.RawQuery = query.Encode()
		l.SetResult(u.String())
		return nil
	}
}
