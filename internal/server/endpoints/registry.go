package endpoints

import (
	"github.com/jackzampolin/imgbot/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Chapter endpoints
		&ProcessChapterEndpoint{},
		&ProcessNextEndpoint{},
		&ListChaptersEndpoint{},

		// Continuous check endpoints
		&StartCheckEndpoint{},
		&StopCheckEndpoint{},

		// Statistics and diagnostics
		&StatsEndpoint{},
		&TestImgbbEndpoint{},
		&TestProxyEndpoint{},

		// Run ledger endpoints
		&ListRunsEndpoint{},
		&GetRunEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},

		// Status page
		&IndexEndpoint{},
	}
}

// ChapterCommands returns endpoints grouped under the "chapters" subcommand.
func ChapterCommands() []api.Endpoint {
	return []api.Endpoint{
		&ProcessChapterEndpoint{},
		&ProcessNextEndpoint{},
		&ListChaptersEndpoint{},
	}
}

// CheckerCommands returns endpoints grouped under the "checker" subcommand.
func CheckerCommands() []api.Endpoint {
	return []api.Endpoint{
		&StartCheckEndpoint{},
		&StopCheckEndpoint{},
	}
}

// RunCommands returns endpoints grouped under the "runs" subcommand.
func RunCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
	}
}
