// Package dialect implements the pure request-side and response-side
// translators of spec §4.5: the table of (method -> handler) that rewrites
// host-dialect messages into the backend's vendor dialect and back.
package dialect

import (
	"github.com/wingkinl/oclsp-proxy/internal/config"
	"github.com/wingkinl/oclsp-proxy/internal/dynjson"
	"github.com/wingkinl/oclsp-proxy/internal/env"
	"github.com/wingkinl/oclsp-proxy/internal/ids"
	"github.com/wingkinl/oclsp-proxy/internal/inject"
	"github.com/wingkinl/oclsp-proxy/internal/logging"
)

// Context is the read-mostly set of collaborators every translator needs.
// Built once by proxyd.Run and shared by both pumps.
type Context struct {
	Env       env.Environment
	Config    *config.Snapshot
	IDs       *ids.Table
	Injector  *inject.Queue
	Templates *Templates
	ErrorLog  *logging.File
}

// RequestHandler mutates a host-bound message in place, translating it into
// the form the backend expects, and may enqueue auxiliary injected
// requests. The method name msg carries after the call is what the pump
// sends to the backend and records as the alias's dispatch key.
type RequestHandler func(ctx *Context, msg dynjson.Message)

// ResponseHandler mutates a backend-originated message in place, translating
// it into the form the host expects.
type ResponseHandler func(ctx *Context, msg dynjson.Message)

var requestHandlers = map[string]RequestHandler{
	"initialize":                  handleInitializeRequest,
	"initialized":                 handleInitializedNotification,
	"textDocument/hover":          rewriteMethod("cpptools/hover"),
	"textDocument/documentSymbol": handleDocumentSymbolRequest,
	"textDocument/references":     handleReferencesRequest,
}

var responseHandlers = map[string]ResponseHandler{
	"initialize":                  handleInitializeResponse,
	"textDocument/completion":     handleCompletionResponse,
	"cpptools/hover":              handleHoverResponse,
	"cpptools/getDocumentSymbols": handleDocumentSymbolsResponse,
	"cpptools/findAllReferences":  handleReferencesResponse,
}

// TranslateRequest looks up msg's method and applies its handler, if any.
// Anything not in the table is forwarded unchanged (spec §4.5.1, "Anything
// else: forward unchanged").
func TranslateRequest(ctx *Context, msg dynjson.Message) {
	if h, ok := requestHandlers[msg.Method()]; ok {
		h(ctx, msg)
	}
}

// TranslateResponse dispatches on the backend-bound method recorded by the
// alias the response resolved (ids.Alias.Method), not the host's original
// method name — see DESIGN.md's Open Question decision on §4.5.2 dispatch.
func TranslateResponse(ctx *Context, method string, msg dynjson.Message) {
	if h, ok := responseHandlers[method]; ok {
		h(ctx, msg)
	}
}

func rewriteMethod(method string) RequestHandler {
	return func(_ *Context, msg dynjson.Message) {
		msg["method"] = method
	}
}
