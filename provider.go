package ltiprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/api/adminapi"
	"github.com/go-lti/ltiprovider/events"
	"github.com/go-lti/ltiprovider/oauth"
	"github.com/go-lti/ltiprovider/service"
	"github.com/go-lti/ltiprovider/storage/model"
)

// DefaultMessage is shown to users whose launch failed
const DefaultMessage = "Sorry, there was an error connecting you to the application."

// DefaultLaunchPath is the path launches are posted to
const DefaultLaunchPath = "/launch"

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	// WriteBufferSize: 4096,
	ErrorHandler: handleError,
	Network:      "tcp",
}

// ToolProvider authenticates LTI launches and serves the launch endpoint and
// the admin API
type ToolProvider struct {
	// Message is shown to the user when a launch fails
	Message string
	// AllowSharing and DefaultEmail apply unless overridden by stored launch
	// settings of the provider or the launching consumer
	AllowSharing bool
	DefaultEmail string

	backends        model.Backends
	verifier        *oauth.Server
	signer          *oauth.Signer
	services        *service.Client
	publisher       events.Publisher
	handlers        map[string]Handler
	onError         Handler
	constraints     map[string]ParameterConstraint
	constraintOrder []string
	now             func() time.Time
	threshold       time.Duration
	nonceTTL        time.Duration

	server       *fiber.App
	adminServer  *fiber.App
	serverConf   ServerConf
	launchPath   string
	accessLog    io.Writer
	adminOptions *adminapi.Options
}

// Option configures a ToolProvider
type Option func(*ToolProvider)

// WithSignatureMethods sets the signature methods accepted for launches;
// HMAC-SHA1 is accepted by default
func WithSignatureMethods(methods ...oauth.SignatureMethod) Option {
	return func(p *ToolProvider) {
		p.verifier = oauth.NewServer(p.backends.Nonces, methods...)
	}
}

// WithReplayWindow sets how far a launch timestamp may deviate from the
// current time and how long used nonces are remembered; zero values keep the
// defaults of oauth.Server
func WithReplayWindow(threshold, nonceTTL time.Duration) Option {
	return func(p *ToolProvider) {
		p.threshold = threshold
		p.nonceTTL = nonceTTL
	}
}

// WithSigner sets the signer used for messages sent back to consumers
func WithSigner(s *oauth.Signer) Option {
	return func(p *ToolProvider) {
		p.signer = s
	}
}

// WithServiceClient sets the extension service client used by the admin API
func WithServiceClient(c *service.Client) Option {
	return func(p *ToolProvider) {
		p.services = c
	}
}

// WithPublisher sets the publisher launch events are sent to
func WithPublisher(pub events.Publisher) Option {
	return func(p *ToolProvider) {
		p.publisher = pub
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(p *ToolProvider) {
		p.now = now
	}
}

// WithAccessLog sets the writer for access log lines
func WithAccessLog(w io.Writer) Option {
	return func(p *ToolProvider) {
		p.accessLog = w
	}
}

// WithLaunchPath sets the path launches are posted to
func WithLaunchPath(path string) Option {
	return func(p *ToolProvider) {
		p.launchPath = path
	}
}

// WithAdminAPI mounts the admin API; without this option it is not served
func WithAdminAPI(opts adminapi.Options) Option {
	return func(p *ToolProvider) {
		p.adminOptions = &opts
	}
}

// NewToolProvider creates a new ToolProvider
func NewToolProvider(serverConf ServerConf, backends model.Backends, opts ...Option) (*ToolProvider, error) {
	p := &ToolProvider{
		Message:     DefaultMessage,
		backends:    backends,
		verifier:    oauth.NewServer(backends.Nonces),
		signer:      oauth.NewSigner(),
		publisher:   events.NopPublisher{},
		handlers:    make(map[string]Handler),
		constraints: make(map[string]ParameterConstraint),
		now:         time.Now,
		serverConf:  serverConf,
		launchPath:  DefaultLaunchPath,
	}
	for _, o := range opts {
		o(p)
	}
	p.verifier.Now = p.now
	if p.threshold > 0 {
		p.verifier.Threshold = p.threshold
	}
	if p.nonceTTL > 0 {
		p.verifier.NonceTTL = p.nonceTTL
	}
	if p.services == nil {
		p.services = service.NewClient(service.WithSigner(p.signer), service.WithClock(p.now))
	}

	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		FiberServerConfig.TrustedProxies = serverConf.TrustedProxies
		FiberServerConfig.EnableTrustedProxyCheck = true
	}
	FiberServerConfig.ProxyHeader = serverConf.ForwardedIPHeader
	p.server = p.newApp()
	p.server.Post(p.launchPath, p.handleLaunch)

	if p.adminOptions != nil {
		if p.adminOptions.Publisher == nil {
			p.adminOptions.Publisher = p.publisher
		}
		admin := p.server
		if serverConf.AdminAPIPort > 0 {
			p.adminServer = p.newApp()
			admin = p.adminServer
		}
		if err := adminapi.Register(
			admin.Group("/api/v1/admin"), serverConf.ExternalURL, backends, p.services, p.adminOptions,
		); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *ToolProvider) newApp() *fiber.App {
	server := fiber.New(FiberServerConfig)
	server.Use(recover.New())
	server.Use(compress.New())
	if p.accessLog != nil {
		server.Use(logger.New(logger.Config{Output: p.accessLog}))
	} else {
		server.Use(logger.New())
	}
	server.Use(requestid.New())
	return server
}

// Handle sets the handler for launches of messageType
func (p *ToolProvider) Handle(messageType string, h Handler) {
	p.handlers[messageType] = h
}

// OnError sets a handler called for failed launches; it may set the
// ErrorOutput of the launch
func (p *ToolProvider) OnError(h Handler) {
	p.onError = h
}

// Backends returns the storage backends of the provider
func (p *ToolProvider) Backends() model.Backends {
	return p.backends
}

// Services returns the extension service client
func (p *ToolProvider) Services() *service.Client {
	return p.services
}

func (p *ToolProvider) handleLaunch(ctx *fiber.Ctx) error {
	form, err := url.ParseQuery(string(ctx.Body()))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form body")
	}
	req, err := NewLaunchRequest(
		ctx.Method(), ctx.BaseURL()+ctx.OriginalURL(), form, ctx.Get(fiber.HeaderAuthorization),
	)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	l := p.Authenticate(ctx.UserContext(), req)
	res, err := p.Respond(l)
	if err != nil {
		return err
	}
	if res.Location != "" {
		return ctx.Redirect(res.Location, res.Status)
	}
	ctx.Set(fiber.HeaderContentType, res.ContentType)
	return ctx.Status(res.Status).SendString(res.Body)
}

func (p *ToolProvider) publishLaunch(ctx context.Context, l *Launch) {
	e := events.Event{
		Type:        events.LaunchSucceeded,
		Time:        p.now().UTC(),
		ConsumerKey: l.Request.ConsumerKey(),
		MessageType: l.Request.MessageType(),
		Reason:      l.Reason(),
	}
	if !l.OK() {
		e.Type = events.LaunchFailed
	}
	if l.ResourceLink != nil {
		e.ResourceLinkID = l.ResourceLink.ID()
	}
	if l.User != nil {
		e.UserID = l.User.ID()
	}
	if err := p.publisher.Publish(ctx, e); err != nil {
		log.WithError(err).WithField("event", e.Type).Warn("could not publish launch event")
	}
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (p *ToolProvider) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(p.server)
}

// App returns the fiber app serving launches
func (p *ToolProvider) App() *fiber.App {
	return p.server
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (p *ToolProvider) Listen(addr string) error {
	return p.server.Listen(addr)
}

// Start starts the configured servers and blocks
func (p *ToolProvider) Start() {
	conf := p.serverConf
	if p.adminServer != nil {
		log.WithField("port", conf.AdminAPIPort).Info("starting admin api server")
		go func() {
			log.WithError(p.adminServer.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.AdminAPIPort))).Fatal()
		}()
	}
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled starting http server")
		log.WithError(p.server.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))).Fatal()
	}
	// TLS enabled
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(conf.IPListen + ":80")).Fatal()
		}()
	}
	time.Sleep(time.Millisecond) // This is just for a more pretty output with the tls header printed after the http one
	log.Info("TLS enabled, starting https server on port 443")
	log.WithError(p.server.ListenTLS(conf.IPListen+":443", conf.TLS.Cert, conf.TLS.Key)).Fatal()
}
