package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"blockpark/server"
)

// Blockpark entry point: HTTP + WebSocket service around one session hub.
func main() {
	var (
		addr      string
		logFile   string
		staticDir string
		outfitURL string
	)
	flag.StringVar(&addr, "addr", ":3000", "server listen address, e.g. :3000")
	flag.StringVar(&logFile, "log", "app.log", "log file path (rolling)")
	flag.StringVar(&staticDir, "static", "public", "directory of client assets")
	flag.StringVar(&outfitURL, "outfits", "", "base URL of the outfit/profile service (empty: defaults for everyone)")
	flag.Parse()

	if err := server.InitLogger(logFile); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	var outfits server.OutfitLookup
	if outfitURL != "" {
		outfits = &server.HTTPOutfits{Base: outfitURL}
	}
	hub := server.NewHub(server.HubConfig{
		Outfits: outfits,
		Logger:  server.Log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS(hub))
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	mux.HandleFunc("/admin/rooms", server.HandleAdminRooms(hub))
	mux.HandleFunc("/metrics", server.HandleMetrics(hub))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("Blockpark listening on %s; open http://localhost%v/", addr, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// Graceful exit on Ctrl+C.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
}
