package sidekick

import (
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/sidekick/browser"
	"github.com/hupe1980/sidekick/config"
	"github.com/hupe1980/sidekick/invoke"
	"github.com/hupe1980/sidekick/logging"
	"github.com/hupe1980/sidekick/model"
	"github.com/hupe1980/sidekick/model/anthropic"
	"github.com/hupe1980/sidekick/model/openai"
	"github.com/hupe1980/sidekick/session"
	"github.com/hupe1980/sidekick/tool"
)

// NewManager assembles a fully wired session manager from configuration:
// worker and evaluator models, the built-in tools the configuration enables,
// and the per-session browser provider.
func NewManager(cfg *config.Config, logger logging.Logger) *session.Manager {
	logger = logging.OrNoOp(logger)

	workerModel := newModel(cfg.WorkerModel)
	judgeModel := newModel(cfg.EvaluatorModel)

	tools := buildTools(cfg, logger)

	browserProvider := browser.NewProvider(func(o *browser.Options) {
		o.Headless = cfg.BrowserHeadless
		o.Logger = logger
	})

	return session.NewManager(workerModel, judgeModel, func(o *session.ManagerOptions) {
		o.Tools = tools
		o.Providers = []session.Provider{browserProvider}
		o.MaxWorkerPasses = cfg.MaxTurns
		o.Logger = logger
		o.Retry = []func(ro *invoke.Options){func(ro *invoke.Options) {
			ro.MaxAttempts = cfg.RetryMaxAttempts
			ro.InitialDelay = cfg.RetryInitialDelay
			ro.MaxDelay = cfg.RetryMaxDelay
		}}
	})
}

// newModel picks the provider adapter from the model identifier: claude
// models go to Anthropic, everything else to OpenAI.
func newModel(name string) model.Model {
	if strings.HasPrefix(name, "claude") {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(name)
		})
	}
	return openai.NewModel(func(o *openai.Options) {
		o.Model = name
	})
}

func buildTools(cfg *config.Config, logger logging.Logger) []tool.Tool {
	tools := tool.NewFileTools(cfg.SandboxDir)

	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		tools = append(tools, tool.NewPushNotificationTool(cfg.PushoverToken, cfg.PushoverUser,
			func(o *tool.PushoverOptions) {
				o.APIURL = cfg.PushoverAPIURL
				o.Timeout = cfg.PushoverRequestTimeout
			}))
	} else {
		logger.Debug("push notification tool disabled, missing PUSHOVER_TOKEN or PUSHOVER_USER")
	}

	if cfg.SerperAPIKey != "" {
		tools = append(tools, tool.NewWebSearchTool(cfg.SerperAPIKey,
			func(o *tool.SearchOptions) {
				o.APIURL = cfg.SerperAPIURL
				o.Timeout = cfg.SerperRequestTimeout
			}))
	} else {
		logger.Debug("web search tool disabled, missing SERPER_API_KEY")
	}

	if cfg.EnableShellTool {
		logger.Warn("shell tool is ENABLED, arbitrary commands can run on this host")
		logger.Warn("only enable the shell tool in trusted environments")
		tools = append(tools, tool.NewShellTool(func(o *tool.ShellOptions) {
			o.Timeout = 60 * time.Second
			o.WorkDir = cfg.SandboxDir
		}))
	}

	return tools
}
