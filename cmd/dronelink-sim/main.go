// Command dronelink-sim serves simulated onboard flight-control endpoints for local
// development. Point a drone's accessUrl at http://<addr>/<droneID>.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"droneDispatch/internal/dronelink"
	"droneDispatch/internal/dronelink/sim"
	"droneDispatch/internal/logging"
)

func main() {
	addr := flag.String("addr", getEnv("SIM_ADDRESS", ":8090"), "HTTP address the simulator listens on")
	droneID := flag.String("drone", "", "drone id to place at -lat/-lng on startup")
	lat := flag.Float64("lat", 0, "initial latitude of -drone")
	lng := flag.Float64("lng", 0, "initial longitude of -drone")
	flag.Parse()

	logger, err := logging.New(getEnv("APP_ENV", "development"))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	s := sim.New()
	if *droneID != "" {
		s.SetPosition(*droneID, dronelink.Position{Lat: *lat, Lng: *lng})
	}

	srv := &http.Server{Addr: *addr, Handler: middleware.Logger(s.Router())}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("simulator exited", zap.Error(err))
		}
	}()
	logger.Info("drone link simulator listening", zap.String("addr", *addr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
