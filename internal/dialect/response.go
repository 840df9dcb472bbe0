package dialect

import (
	"sort"

	"github.com/wingkinl/oclsp-proxy/internal/dynjson"
	"github.com/wingkinl/oclsp-proxy/internal/version"
)

func handleInitializeResponse(_ *Context, msg dynjson.Message) {
	result := dynjson.EnsureMap(msg, "result")
	caps := dynjson.EnsureMap(result, "capabilities")
	caps["hoverProvider"] = true
	caps["documentSymbolProvider"] = true
	caps["referencesProvider"] = true
	general := dynjson.EnsureMap(caps, "general")
	general["positionEncodings"] = []interface{}{"utf-8"}
}

// handleCompletionResponse sorts the items and rewrites documentation shape
// only for hosts old enough to reject structured documentation (spec
// §4.5.2); newer hosts get the response untouched.
func handleCompletionResponse(ctx *Context, msg dynjson.Message) {
	if !ctx.Env.OrgVersion.LessThan(version.GateVersion) {
		return
	}
	items := completionItems(msg.Result())
	if items == nil {
		return
	}
	sortCompletionItems(items)
	for _, raw := range items {
		item, ok := dynjson.AsMap(raw)
		if !ok {
			continue
		}
		doc, ok := dynjson.GetMap(item, "documentation")
		if !ok {
			continue
		}
		if value, ok := dynjson.GetString(doc, "value"); ok {
			item["documentation"] = value
		}
	}
}

func completionItems(result interface{}) []interface{} {
	if slice, ok := dynjson.AsSlice(result); ok {
		return slice
	}
	if m, ok := dynjson.AsMap(result); ok {
		if slice, ok := dynjson.GetSlice(m, "items"); ok {
			return slice
		}
	}
	return nil
}

func sortCompletionItems(items []interface{}) {
	key := func(it interface{}) string {
		m, ok := dynjson.AsMap(it)
		if !ok {
			return ""
		}
		if s, ok := dynjson.GetString(m, "sortText"); ok && s != "" {
			return s
		}
		label, _ := dynjson.GetString(m, "label")
		return label
	}
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := key(items[i]), key(items[j])
		if ki != kj {
			return ki < kj
		}
		return len(ki) < len(kj)
	})
}

func handleHoverResponse(_ *Context, msg dynjson.Message) {
	result, ok := dynjson.AsMap(msg.Result())
	if !ok {
		return
	}
	contents, ok := result["contents"]
	if !ok {
		return
	}
	if slice, ok := dynjson.AsSlice(contents); ok {
		if len(slice) == 1 {
			markAsMarkdownIfBare(slice[0])
		}
		return
	}
	markAsMarkdownIfBare(contents)
}

func markAsMarkdownIfBare(v interface{}) {
	m, ok := dynjson.AsMap(v)
	if !ok {
		return
	}
	if _, hasKind := m["kind"]; hasKind {
		return
	}
	if _, hasValue := m["value"]; hasValue {
		m["kind"] = "markdown"
	}
}

func handleDocumentSymbolsResponse(ctx *Context, msg dynjson.Message) {
	result := msg.Result()
	symbols, ok := dynjson.AsSlice(result)
	if !ok {
		m, ok := dynjson.AsMap(result)
		if !ok {
			return
		}
		symbols, ok = dynjson.GetSlice(m, "symbols")
		if !ok {
			return
		}
	}
	if ctx.Env.OrgVersion.LessThan(version.GateVersion) {
		symbols = flattenSymbols(symbols, "")
	}
	msg.SetResult(symbols)
}

// flattenSymbols splices each symbol's children after it in document order,
// recording the parent's name (empty at the top level) as detail.
func flattenSymbols(symbols []interface{}, parentName string) []interface{} {
	out := make([]interface{}, 0, len(symbols))
	for _, raw := range symbols {
		sym, ok := dynjson.AsMap(raw)
		if !ok {
			out = append(out, raw)
			continue
		}
		children, _ := dynjson.GetSlice(sym, "children")
		delete(sym, "children")
		sym["detail"] = parentName
		name, _ := dynjson.GetString(sym, "name")
		out = append(out, sym)
		if len(children) > 0 {
			out = append(out, flattenSymbols(children, name)...)
		}
	}
	return out
}

func handleReferencesResponse(ctx *Context, msg dynjson.Message) {
	result, ok := dynjson.AsMap(msg.Result())
	if !ok {
		msg.SetResult([]interface{}{})
		return
	}
	infos, _ := dynjson.GetSlice(result, "referenceInfos")
	locations := make([]interface{}, 0, len(infos))
	for _, raw := range infos {
		info, ok := dynjson.AsMap(raw)
		if !ok {
			continue
		}
		file, ok := dynjson.GetString(info, "file")
		if !ok {
			continue
		}
		position, ok := dynjson.GetMap(info, "position")
		if !ok {
			continue
		}
		refType, ok := dynjson.AsInt64(info["type"])
		if !ok || !ctx.Config.IsRefTypeAllowed(int(refType)) {
			continue
		}
		locations = append(locations, map[string]interface{}{
			"uri":   ensureFileURI(file),
			"range": map[string]interface{}{"start": position, "end": position},
			"text":  info["text"],
			"type":  refType,
		})
	}
	msg.SetResult(locations)
}
