package templating

import (
	"github.com/hashicorp/go-hclog"

	"github.com/goliatone/go-templating/expression"
	"github.com/goliatone/go-templating/pkg/activity"
)

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	datasources DatasourceProvider
	templates   TemplateFetcher
	engines     *expression.Engines
	logger      hclog.Logger
	activity    *activity.Emitter
	dashboard   string
}

// WithDatasources sets the provider query variables resolve against.
func WithDatasources(provider DatasourceProvider) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.datasources = provider
	}
}

// WithTemplateFetcher sets the store global variables are fetched from.
func WithTemplateFetcher(fetcher TemplateFetcher) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.templates = fetcher
	}
}

// WithEngines sets the expression engines. Without it the Service builds the
// default set, logging evaluations through its own logger.
func WithEngines(engines *expression.Engines) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.engines = engines
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger hclog.Logger) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.logger = logger
	}
}

// WithActivity emits variable lifecycle events through emitter.
func WithActivity(emitter *activity.Emitter) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.activity = emitter
	}
}

// WithDashboard names the dashboard in log lines and activity events.
func WithDashboard(uid string) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.dashboard = uid
	}
}

// evaluationLogger forwards expression evaluations to logger at trace level,
// failures at debug.
func evaluationLogger(logger hclog.Logger) expression.Logger {
	return expression.LoggerFunc(func(event expression.LogEvent) {
		args := []any{
			"engine", event.Engine,
			"variable", event.Variable,
			"duration", event.Duration,
		}
		if event.Err != nil {
			logger.Debug("expression failed", append(args, "expr", event.Expr, "error", event.Err)...)
			return
		}
		logger.Trace("expression evaluated", args...)
	})
}
