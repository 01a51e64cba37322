// Package openapi builds the machine-readable contract describing both
// surfaces this router exposes: the WebDriver-shaped proxy ingress
// (spec.md §4.5) and the admin REST surface (spec.md §6), served by the
// admin surface at /openapi.json.
//
// Grounded on the teacher's internal/catalog use of kin-openapi's
// openapi3.T document model, generalized here from "read an uploaded
// spec" to "assemble our own spec in code".
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Document assembles the full openapi3.T for this router.
func Document() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "hubrouter",
			Description: "WebDriver-aware reverse proxy and router over a pool of Selenium-Grid-compatible hubs",
			Version:     "1.0.0",
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/session", newSessionPathItem()),
			openapi3.WithPath("/session/{sessionId}", sessionPathItem()),
			openapi3.WithPath("/admin/hubs", adminHubsPathItem()),
			openapi3.WithPath("/admin/hubs/{uuid}", adminHubPathItem()),
			openapi3.WithPath("/admin/sessions", adminSessionsPathItem()),
			openapi3.WithPath("/admin/config", adminConfigPathItem()),
			openapi3.WithPath("/admin/persist", adminPersistPathItem()),
			openapi3.WithPath("/healthz", healthzPathItem()),
			openapi3.WithPath("/metrics", metricsPathItem()),
		),
	}
	return doc
}

func jsonResponse(desc string, schema *openapi3.SchemaRef) *openapi3.Responses {
	resp := openapi3.NewResponse().WithDescription(desc)
	if schema != nil {
		resp = resp.WithContent(openapi3.NewContentWithSchemaRef(schema, []string{"application/json"}))
	}
	return openapi3.NewResponses(openapi3.WithStatus(200, &openapi3.ResponseRef{Value: resp}))
}

func errorResponses() map[string]*openapi3.ResponseRef {
	return map[string]*openapi3.ResponseRef{
		"500": {Value: openapi3.NewResponse().WithDescription("routing or backend-transport failure")},
	}
}

func newSessionPathItem() *openapi3.PathItem {
	capSchema := openapi3.NewObjectSchema().
		WithProperty("browserName", openapi3.NewStringSchema()).
		WithProperty("platformName", openapi3.NewStringSchema())

	reqSchema := openapi3.NewObjectSchema().WithProperty("capabilities",
		openapi3.NewObjectSchema().
			WithProperty("alwaysMatch", capSchema).
			WithProperty("firstMatch", capSchema),
	)

	op := openapi3.NewOperation()
	op.OperationID = "new_session"
	op.Summary = "Create a new WebDriver session on a weighted, capability-satisfying hub"
	op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithJSONSchemaRef(openapi3.NewSchemaRef("", reqSchema))}
	responses := jsonResponse("the hub's new-session response, with sessionId recorded for affinity", nil)
	for code, r := range errorResponses() {
		responses.Set(code, r)
	}
	op.Responses = responses

	item := openapi3.NewPathItem()
	item.Post = op
	return item
}

func sessionPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()

	del := openapi3.NewOperation()
	del.OperationID = "delete_session"
	del.Summary = "Delete a session and release its affinity entry"
	responses := jsonResponse("the hub's delete response", nil)
	for code, r := range errorResponses() {
		responses.Set(code, r)
	}
	del.Responses = responses
	item.Delete = del

	// Every other WebDriver command under /session/{sessionId}/... is
	// forwarded using the same affinity lookup; only delete is a distinct
	// operation from the router's perspective (spec.md §4.5 step 2).
	other := openapi3.NewOperation()
	other.OperationID = "forward_session_command"
	other.Summary = "Forward any other WebDriver command for an existing session"
	other.Responses = jsonResponse("the hub's response, streamed back unchanged", nil)
	item.Get = other

	return item
}

func adminHubsPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()

	list := openapi3.NewOperation()
	list.OperationID = "list_hubs"
	list.Responses = jsonResponse("the registered hubs and their current view state", nil)
	item.Get = list

	register := openapi3.NewOperation()
	register.OperationID = "register_hub"
	register.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithJSONSchemaRef(
		openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
			WithProperty("name", openapi3.NewStringSchema()).
			WithProperty("url", openapi3.NewStringSchema())),
	)}
	register.Responses = jsonResponse("the newly registered hub's metadata", nil)
	item.Post = register

	return item
}

func adminHubPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()
	dereg := openapi3.NewOperation()
	dereg.OperationID = "deregister_hub"
	dereg.Responses = openapi3.NewResponses(openapi3.WithStatus(204, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("hub removed"),
	}))
	item.Delete = dereg
	return item
}

func adminSessionsPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()
	list := openapi3.NewOperation()
	list.OperationID = "list_sessions"
	list.Responses = jsonResponse("the current session-id to hub-url affinity table", nil)
	item.Get = list
	return item
}

func adminConfigPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()

	get := openapi3.NewOperation()
	get.OperationID = "get_config"
	get.Responses = jsonResponse("the current config primitives", nil)
	item.Get = get

	patch := openapi3.NewOperation()
	patch.OperationID = "set_config"
	patch.Summary = "Replace the full config, or a single keyed field"
	patch.Responses = jsonResponse("the config after the update", nil)
	item.Patch = patch

	return item
}

func adminPersistPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()
	op := openapi3.NewOperation()
	op.OperationID = "persist"
	op.Responses = openapi3.NewResponses(openapi3.WithStatus(204, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("hub metadata and config written to disk"),
	}))
	item.Post = op
	return item
}

func healthzPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()
	op := openapi3.NewOperation()
	op.OperationID = "healthz"
	op.Responses = jsonResponse("process liveness", nil)
	item.Get = op
	return item
}

func metricsPathItem() *openapi3.PathItem {
	item := openapi3.NewPathItem()
	op := openapi3.NewOperation()
	op.OperationID = "metrics"
	op.Summary = "Prometheus text exposition"
	op.Responses = jsonResponse("prometheus metrics", nil)
	item.Get = op
	return item
}
