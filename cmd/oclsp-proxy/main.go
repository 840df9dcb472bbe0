package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wingkinl/oclsp-proxy/internal/config"
	"github.com/wingkinl/oclsp-proxy/internal/dialect"
	"github.com/wingkinl/oclsp-proxy/internal/env"
	"github.com/wingkinl/oclsp-proxy/internal/logging"
	"github.com/wingkinl/oclsp-proxy/internal/proxyd"
)

func main() {
	flag.Parse()
	log.SetFlags(log.Flags() | log.Lshortfile)

	if flag.NArg() != 1 {
		log.Fatal("usage: oclsp-proxy <backend-executable-path>")
	}
	backendExePath := flag.Arg(0)

	e := env.FromOS(backendExePath)
	sessionID := uuid.New().String()

	logFile := logging.NewFile(e.LogPath(), sessionID, e.EnableLog)
	errorLog := logging.NewFile(e.ErrorLogPath(), sessionID, true)
	tracer := logging.NewTracer(e.EnableTrace)

	templates := dialect.LoadTemplates(assetsDir(), errorLog)

	cache := config.NewCache(e.ConfigJSONPath, e.UserConfigJSONPath(), config.Defaults{
		OrgDirExe:         e.OrgDirExe,
		OrgDirUserAppData: e.OrgDirUserAppData,
	})

	logFile.Printf("starting session for backend %s", backendExePath)

	err := proxyd.Run(proxyd.Options{
		Env:       e,
		Config:    cache,
		Templates: templates,
		Log:       logFile,
		ErrorLog:  errorLog,
		Tracer:    tracer,
		HostIn:    os.Stdin,
		HostOut:   os.Stdout,
	})
	if err != nil {
		errorLog.Exception("proxyd.Run", err)
		log.Fatal(err)
	}
}

// assetsDir is the directory the bundled cpptools templates ship in,
// co-located with the binary under an "assets" subdirectory.
func assetsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "assets"
	}
	return filepath.Join(filepath.Dir(exe), "assets")
}
