package spec

import (
	_ "embed"
	"net/http"
	"strconv"
)

//go:embed openapi.yaml
var openapi []byte

// OpenAPIHandler serves the embedded OpenAPI document describing /api/v1.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Length", strconv.Itoa(len(openapi)))
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(openapi)
	}
}
