package dialect

import (
	"fmt"
	"path/filepath"

	"github.com/wingkinl/oclsp-proxy/internal/config"
	"github.com/wingkinl/oclsp-proxy/internal/dynjson"
)

// fixedClientInfo is the editor identity the backend is told it is talking
// to, chosen to match what the backend expects of a well-known host.
var fixedClientInfo = map[string]interface{}{
	"name":    "Visual Studio Code",
	"version": "1.85.0",
}

// allWorkspaceFolders is the implicit OriginC root plus every folder the
// configuration merger produced, in that order. initialize's
// workspaceFolders, the injected workspaceFolderSettings, and the one
// didChangeCppProperties injection per folder all walk this same list.
func allWorkspaceFolders(ctx *Context) []config.WorkspaceFolder {
	originC := config.WorkspaceFolder{URI: ctx.Env.OriginCPath(), Name: "OriginC"}
	out := make([]config.WorkspaceFolder, 0, 1+len(ctx.Config.WorkspaceFolders))
	out = append(out, originC)
	out = append(out, ctx.Config.WorkspaceFolders...)
	return out
}

func handleInitializeRequest(ctx *Context, msg dynjson.Message) {
	params := msg.Params()
	if params == nil {
		params = map[string]interface{}{}
	}
	params["clientInfo"] = fixedClientInfo
	params["rootPath"] = ctx.Env.OriginCPath()

	folders := make([]interface{}, 0, 1)
	for _, wf := range allWorkspaceFolders(ctx) {
		folders = append(folders, map[string]interface{}{
			"uri":  ensureFileURI(wf.URI),
			"name": wf.Name,
		})
	}
	params["workspaceFolders"] = folders

	if ctx.Env.EnableCpptoolsTrace {
		opts := dynjson.EnsureMap(params, "initializationOptions")
		opts["loggingLevel"] = 1
		params["trace"] = "verbose"
	}
	msg.SetParams(params)
}

func handleInitializedNotification(ctx *Context, msg dynjson.Message) {
	sendCpptoolsInitialize(ctx)
	for _, wf := range allWorkspaceFolders(ctx) {
		sendDidChangeCppProperties(ctx, wf)
	}
}

// sendCpptoolsInitialize builds and enqueues the cpptools/initialize
// injection (spec §4.5.1, initialized item 1).
func sendCpptoolsInitialize(ctx *Context) {
	params := cloneTemplate(ctx.Templates.Initialize)

	backendDir := filepath.Dir(ctx.Env.BackendExePath)
	params["extensionPath"] = filepath.Dir(backendDir)

	storageBase := filepath.Join(ctx.Env.DataStorageDir(), "OCLSP", "storage")
	params["databaseStoragePath"] = filepath.Join(storageBase, "databaseStorage")
	params["workspaceStoragePath"] = filepath.Join(storageBase, "workspaceStorage")
	params["cacheStoragePath"] = filepath.Join(storageBase, "cacheStorage")
	params["edgeMessagesDirectory"] = filepath.Join(backendDir, "messages", "en-us")

	systemIncludePath := filepath.Join(ctx.Env.OriginCPath(), "System")
	folderSettings := make([]interface{}, 0, 1)
	for _, wf := range allWorkspaceFolders(ctx) {
		folderSettings = append(folderSettings, map[string]interface{}{
			"defaultSystemIncludePath": []interface{}{systemIncludePath},
			"uri":                      ensureFileURI(wf.URI),
		})
	}
	settings := dynjson.EnsureMap(params, "settings")
	settings["workspaceFolderSettings"] = folderSettings

	enqueue(ctx, "cpptools/initialize", params)
}

// sendDidChangeCppProperties builds and enqueues one
// cpptools/didChangeCppProperties injection for wf (spec §4.5.1, initialized
// item 2).
func sendDidChangeCppProperties(ctx *Context, wf config.WorkspaceFolder) {
	params := cloneTemplate(ctx.Templates.DidChangeCppProperties)

	cfg := firstConfiguration(params)

	includePath := []string{filepath.Join(ctx.Env.OriginCPath(), "**")}
	if wf.Name != "OriginC" {
		for _, p := range ctx.Config.AdditionalIncludePath {
			includePath = append(includePath, filepath.Join(p, "**"))
		}
		for _, p := range wf.IncludePath {
			includePath = append(includePath, filepath.Join(p, "**"))
		}
	}
	cfg["includePath"] = stringsToAny(includePath)

	defines, _ := dynjson.GetSlice(cfg, "defines")
	defines = append(defines, fmt.Sprintf("_OC_VER=%s", ctx.Env.OrgVersion.OCVerHex()))
	cfg["defines"] = defines

	cfg["forcedInclude"] = []interface{}{filepath.Join(ctx.Env.OriginCPath(), "System", "folder.h")}

	params["configurations"] = []interface{}{cfg}
	params["workspaceFolderUri"] = ensureFileURI(wf.URI)

	enqueue(ctx, "cpptools/didChangeCppProperties", params)
}

// firstConfiguration returns the single configuration object inside params,
// creating one if the template didn't supply it.
func firstConfiguration(params map[string]interface{}) map[string]interface{} {
	if configs, ok := dynjson.GetSlice(params, "configurations"); ok && len(configs) > 0 {
		if cfg, ok := dynjson.AsMap(configs[0]); ok {
			return cfg
		}
	}
	return map[string]interface{}{}
}

func stringsToAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// enqueue assigns a proxy-originated id and pushes a built injection onto
// the injector queue.
func enqueue(ctx *Context, method string, params map[string]interface{}) {
	id := ctx.IDs.NewInjectionID()
	msg := dynjson.Message{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	body, err := msg.Bytes()
	if err != nil {
		ctx.ErrorLog.Printf("encoding injected %s: %v", method, err)
		return
	}
	ctx.Injector.Put(body)
}

func handleDocumentSymbolRequest(_ *Context, msg dynjson.Message) {
	msg["method"] = "cpptools/getDocumentSymbols"
	var uri string
	if params := msg.Params(); params != nil {
		if td, ok := dynjson.GetMap(params, "textDocument"); ok {
			uri, _ = dynjson.GetString(td, "uri")
		}
	}
	msg.SetParams(map[string]interface{}{"uri": uri})
}

func handleReferencesRequest(_ *Context, msg dynjson.Message) {
	msg["method"] = "cpptools/findAllReferences"
	params := msg.Params()
	if params == nil {
		params = map[string]interface{}{}
	}
	if _, ok := params["newName"]; !ok {
		params["newName"] = ""
	}
	delete(params, "context")
	msg.SetParams(params)
}
