// Package openapi holds the OpenAPI document of the public recovery routes
// and a middleware that rejects requests not matching it.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/response"
)

//go:embed recovery.yaml
var recoveryDoc []byte

// RecoveryDocument returns the raw document
func RecoveryDocument() []byte {
	return recoveryDoc
}

const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

var defineFormats sync.Once

// LoadRecovery parses and validates the embedded document
func LoadRecovery(ctx context.Context) (*openapi3.T, error) {
	defineFormats.Do(func() {
		openapi3.DefineStringFormat("uuid", uuidPattern)
	})

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(recoveryDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// RequestValidator checks requests against doc. Paths in doc are relative
// to prefix, the mount point of the routes.
func RequestValidator(doc *openapi3.T, prefix string) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}
	prefix = strings.TrimSuffix(prefix, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vr := r.Clone(r.Context())
			vr.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
			vr.URL.RawPath = ""
			if vr.URL.Path == "" {
				vr.URL.Path = "/"
			}

			route, pathParams, err := router.FindRoute(vr)
			if err != nil {
				// Unknown routes are left to the mux to answer
				if err == routers.ErrPathNotFound || err == routers.ErrMethodNotAllowed {
					next.ServeHTTP(w, r)
					return
				}
				response.Error(w, r, errors.Wrap(err, errors.ErrCodeInternal, "failed to match route"))
				return
			}

			err = openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
				Request:    vr,
				PathParams: pathParams,
				Route:      route,
				Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
			})
			// The validator consumed and replaced the body
			r.Body = vr.Body
			if err != nil {
				response.Error(w, r, errors.Wrap(err, errors.ErrCodeValidation, "request does not match the API schema"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
