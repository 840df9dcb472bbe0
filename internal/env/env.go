// Package env reads the environment variables recognized by the proxy
// (spec §6) into a typed snapshot read once at startup.
package env

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wingkinl/oclsp-proxy/internal/version"
)

// Environment is the process-wide configuration read from the command
// line and environment at startup.
type Environment struct {
	BackendExePath string // positional command-line argument

	OrgVersion          version.Version
	OrgDirExe           string
	OrgDirUFF           string
	OrgDirUserAppData   string
	ConfigJSONPath      string
	EnableLog           bool
	EnableTrace         bool
	EnableCpptoolsTrace bool
}

// FromOS builds an Environment from os.Getenv, given the backend path
// passed on the command line.
func FromOS(backendExePath string) Environment {
	return Environment{
		BackendExePath:      backendExePath,
		OrgVersion:          version.Parse(getenv("ORG_VER", "10.0")),
		OrgDirExe:           os.Getenv("ORGDIR_EXE"),
		OrgDirUFF:           os.Getenv("ORGDIR_UFF"),
		OrgDirUserAppData:   os.Getenv("ORGDIR_USER_APPDATA"),
		ConfigJSONPath:      os.Getenv("OCLSP_CONFIG_JSON_PATH"),
		EnableLog:           parseBool(os.Getenv("OCLSP_LOG")),
		EnableTrace:         parseBool(os.Getenv("OCLSP_TRACE")),
		EnableCpptoolsTrace: parseBool(os.Getenv("OCLSP_CPPTOOLS_TRACE")),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseBool is case-insensitive, matching the original's
// `os.environ.get(...).lower() == "true"`. Unlike strconv.ParseBool it
// never errors; anything other than "true" is false.
func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// DataStorageDir is the directory storage/log files live under: the
// per-user app-data directory if it exists on disk, else the fallback
// user-files directory.
func (e Environment) DataStorageDir() string {
	if info, err := os.Stat(e.OrgDirUserAppData); err == nil && info.IsDir() {
		return e.OrgDirUserAppData
	}
	return e.OrgDirUFF
}

// OriginCPath is the primary workspace root: <ORGDIR_EXE>/OriginC.
func (e Environment) OriginCPath() string {
	return filepath.Join(e.OrgDirExe, "OriginC")
}

// UserConfigJSONPath is the per-user, per-install configuration file path:
// <data-storage>/OCLSP/OCLSP_User.json.
func (e Environment) UserConfigJSONPath() string {
	return filepath.Join(e.DataStorageDir(), "OCLSP", "OCLSP_User.json")
}

// LogPath returns <data-storage>/OCLSP/oclsp_proxy.log.
func (e Environment) LogPath() string {
	return filepath.Join(e.DataStorageDir(), "OCLSP", "oclsp_proxy.log")
}

// ErrorLogPath returns <data-storage>/OCLSP/oclsp_proxy_error.log.
func (e Environment) ErrorLogPath() string {
	return filepath.Join(e.DataStorageDir(), "OCLSP", "oclsp_proxy_error.log")
}
