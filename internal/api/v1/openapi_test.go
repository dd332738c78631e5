package apiv1

import (
	"context"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPIPath = "../../../public/docs/v1/openapi.yml"

func TestOpenAPIDocumentIsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIPath)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
}

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromFile(openAPIPath)
	require.NoError(t, err)

	app := fiber.New()
	RegisterHandlers(app, &APIServer{}, nil)

	for _, route := range app.GetRoutes(true) {
		if route.Method == fiber.MethodHead {
			continue
		}
		t.Run(route.Method+" "+route.Path, func(t *testing.T) {
			item := doc.Paths.Find(route.Path)
			require.NotNil(t, item, "path missing from openapi.yml")
			assert.NotNil(t, item.GetOperation(strings.ToUpper(route.Method)), "operation missing from openapi.yml")
		})
	}
}
