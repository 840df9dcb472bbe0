package dialect

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/wingkinl/oclsp-proxy/internal/logging"
)

// Templates holds the two bundled cpptools request templates the
// injector overlays with runtime paths (spec §4.5.1, §6). Missing or
// malformed files proceed with an empty template per spec §7 item 4.
type Templates struct {
	Initialize             map[string]interface{}
	DidChangeCppProperties map[string]interface{}
}

// LoadTemplates reads both templates from dir; main passes the "assets"
// subdirectory next to the proxy binary.
func LoadTemplates(dir string, errorLog *logging.File) *Templates {
	return &Templates{
		Initialize:             loadTemplate(filepath.Join(dir, "cpptools_initialize.json"), errorLog),
		DidChangeCppProperties: loadTemplate(filepath.Join(dir, "cpptools_didChangeCppProperties.json"), errorLog),
	}
}

func loadTemplate(path string, errorLog *logging.File) map[string]interface{} {
	data, err := os.ReadFile(path)
	if err != nil {
		errorLog.Printf("template %s missing or unreadable: %v", path, err)
		return map[string]interface{}{}
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		errorLog.Printf("template %s malformed: %v", path, err)
		return map[string]interface{}{}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc
}

// cloneTemplate deep-copies a template so each injected message built from
// it can be mutated independently.
func cloneTemplate(m map[string]interface{}) map[string]interface{} {
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
