/*
cachekitd runs the cache server as a standalone process, mirroring the
teacher repo's example/main.go: build the collaborators, start listening,
and shut down cleanly on SIGINT/SIGTERM.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l00pss/cachekit/internal/cachekit"
)

func main() {
	addr := flag.String("addr", ":8888", "address to listen on")
	flag.Parse()

	log := cachekit.NewLogger()
	ks := cachekit.NewKeyspace()
	server := cachekit.NewServer(*addr, ks, log)
	server.StartIdleChecker()

	reaper := cachekit.NewReaper(ks, log)
	go reaper.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		reaper.Stop()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}
}
