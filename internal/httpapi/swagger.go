//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	// Generated OpenAPI spec; registers doc.json with the swagger handler.
	_ "textgend/docs"
)

// MountSwagger serves the generated OpenAPI docs. Run `swag init` before
// building with -tags=swagger.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler())
}
