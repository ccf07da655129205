// litefetchd serves the workspace vault API for the local client.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jordandevai/LiteFetch-API-Client/internal/platform"
	"github.com/jordandevai/LiteFetch-API-Client/internal/server"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "listen address")
	workspace := flag.String("workspace", defaultWorkspace(), "workspace directory")
	flag.Parse()

	logger := log.New(os.Stdout, "[litefetchd] ", log.LstdFlags)

	if err := platform.DisableCoreDumps(); err != nil {
		logger.Printf("core dumps not disabled: %v", err)
	}

	s, err := server.New(server.Config{Addr: *addr, WorkspaceDir: *workspace})
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Printf("listening on %s (workspace %s)", *addr, *workspace)
	logger.Fatal(httpSrv.ListenAndServe())
}

func defaultWorkspace() string {
	if ws := os.Getenv("LITEFETCH_WORKSPACE"); ws != "" {
		return ws
	}
	return "./workspace"
}
