package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/canvas-api/internal/http/greeting"
)

// Register wires all HTTP routes into the provided API.
func Register(api huma.API) {
	greeting.Register(api)
}
