package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/wingkinl/oclsp-proxy/internal/dynjson"
)

// Defaults supplies the paths used to inject the XFC/AppXFC default
// workspace folders, per spec §4.4.
type Defaults struct {
	OrgDirExe         string
	OrgDirUserAppData string
}

// Load reads the machine-wide and per-user documents, merges them, and
// returns the snapshot. Read/parse failures on either file never fail the
// whole load — that side is simply treated as empty, per spec §7 item 5 —
// but are aggregated into the returned error for the caller to log.
func Load(machinePath, userPath string, d Defaults) (*Snapshot, error) {
	var errs *multierror.Error

	machineDoc, err := readJSONFile(machinePath)
	if err != nil {
		errs = multierror.Append(errs, errors.Wrapf(err, "machine config %q", machinePath))
	}
	userDoc, err := readJSONFile(userPath)
	if err != nil {
		errs = multierror.Append(errs, errors.Wrapf(err, "user config %q", userPath))
	}

	return merge(machineDoc, userDoc, d), errs.ErrorOrNil()
}

func readJSONFile(path string) (map[string]interface{}, error) {
	if path == "" {
		return map[string]interface{}{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]interface{}{}, errors.Wrap(err, "reading config file")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]interface{}{}, errors.Wrap(err, "parsing config file")
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

func merge(machineDoc, userDoc map[string]interface{}, d Defaults) *Snapshot {
	scalars := map[string]interface{}{}
	for k, v := range machineDoc {
		scalars[k] = v
	}
	for k, v := range userDoc {
		scalars[k] = v // user overrides machine for scalars
	}

	wfMap := map[string]WorkspaceFolder{}
	var order []string

	addGlobal := func(doc map[string]interface{}) {
		list, _ := dynjson.GetSlice(doc, "workspaceFolders")
		for _, item := range list {
			wf, ok := workspaceFolderFromRaw(item)
			if !ok {
				continue
			}
			key := normalizeURIKey(wf.URI)
			if key == "" {
				continue
			}
			if _, exists := wfMap[key]; !exists {
				order = append(order, key)
			}
			wfMap[key] = wf
		}
	}
	addGlobal(machineDoc)

	userList, _ := dynjson.GetSlice(userDoc, "workspaceFolders")
	for _, item := range userList {
		wf, ok := workspaceFolderFromRaw(item)
		if !ok {
			continue
		}
		key := normalizeURIKey(wf.URI)
		if key == "" {
			continue
		}
		if existing, ok := wfMap[key]; ok {
			existing.IncludePath = dedupConcat(existing.IncludePath, wf.IncludePath)
			existing.Name = wf.Name // other scalar keys take the user value
			wfMap[key] = existing
		} else {
			wfMap[key] = wf
			order = append(order, key)
		}
	}

	for _, d := range defaultWorkspaceFolders(d) {
		key := normalizeURIKey(d.URI)
		if _, exists := wfMap[key]; exists {
			continue
		}
		wfMap[key] = d
		order = append(order, key)
	}

	folders := make([]WorkspaceFolder, 0, len(order))
	for _, key := range order {
		folders = append(folders, wfMap[key])
	}

	additional := dedupConcat(
		stringSlice(dynjson.GetSlice(machineDoc, "additionalIncludePath")),
		stringSlice(dynjson.GetSlice(userDoc, "additionalIncludePath")),
	)

	allowed := map[int]bool{}
	if raw, ok := scalars["allowed_ref_type"]; ok {
		if slice, ok2 := dynjson.AsSlice(raw); ok2 {
			for _, v := range slice {
				if n, ok3 := dynjson.AsInt64(v); ok3 {
					allowed[int(n)] = true
				}
			}
		}
	}
	if len(allowed) == 0 {
		for _, n := range DefaultAllowedRefTypes {
			allowed[n] = true
		}
	}

	delete(scalars, "workspaceFolders")
	delete(scalars, "additionalIncludePath")
	delete(scalars, "allowed_ref_type")

	return &Snapshot{
		WorkspaceFolders:      folders,
		AdditionalIncludePath: additional,
		AllowedRefType:        allowed,
		Scalars:               scalars,
	}
}

func defaultWorkspaceFolders(d Defaults) []WorkspaceFolder {
	var out []WorkspaceFolder
	if d.OrgDirExe != "" {
		out = append(out, WorkspaceFolder{URI: filepath.Join(d.OrgDirExe, "XFC"), Name: "XFC"})
	}
	if d.OrgDirUserAppData != "" {
		out = append(out, WorkspaceFolder{
			URI:  filepath.Join(d.OrgDirUserAppData, "TMP", "OriginC", "X-Functions"),
			Name: "AppXFC",
		})
	}
	return out
}

func workspaceFolderFromRaw(item interface{}) (WorkspaceFolder, bool) {
	m, ok := dynjson.AsMap(item)
	if !ok {
		return WorkspaceFolder{}, false
	}
	uri, _ := dynjson.GetString(m, "uri")
	name, _ := dynjson.GetString(m, "name")
	var inc []string
	if slice, ok2 := dynjson.GetSlice(m, "includePath"); ok2 {
		for _, v := range slice {
			if s, ok3 := dynjson.AsString(v); ok3 {
				inc = append(inc, s)
			}
		}
	}
	return WorkspaceFolder{URI: uri, Name: name, IncludePath: inc}, true
}

func normalizeURIKey(uri string) string {
	return strings.ToLower(strings.TrimSpace(uri))
}

func stringSlice(raw []interface{}, ok bool) []string {
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok2 := dynjson.AsString(v); ok2 {
			out = append(out, s)
		}
	}
	return out
}

// dedupConcat concatenates lists in order, dropping empty entries and
// later duplicates, preserving first-occurrence order.
func dedupConcat(lists ...[]string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Cache loads the snapshot lazily on first access and holds it for the
// life of the process, per spec §4.4 ("the merger loads lazily on first
// access and then caches"). Re-reading on file change is a non-goal.
type Cache struct {
	once sync.Once

	machinePath string
	userPath    string
	defaults    Defaults

	snap *Snapshot
	err  error
}

// NewCache builds a cache; nothing is read until the first Get.
func NewCache(machinePath, userPath string, d Defaults) *Cache {
	return &Cache{machinePath: machinePath, userPath: userPath, defaults: d}
}

// Get returns the cached snapshot, loading it on the first call.
func (c *Cache) Get() (*Snapshot, error) {
	c.once.Do(func() {
		c.snap, c.err = Load(c.machinePath, c.userPath, c.defaults)
	})
	return c.snap, c.err
}
