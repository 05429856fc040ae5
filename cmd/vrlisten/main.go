// vrlisten is the scene-host listener: it accepts NDJSON voice commands
// over TCP and applies them to the actuator from a single executor
// goroutine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"github.com/omotayoh/vRvoice/internal/actuator"
	"github.com/omotayoh/vRvoice/internal/dispatch"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	host := cli.String("host", "0.0.0.0", "Bind host")
	port := cli.Int("port", 8777, "Bind port")
	secret := cli.String("secret", "", "Shared secret token (overrides VRVOICE_TOKEN)")
	tick := cli.Duration("tick", dispatch.DefaultTick, "Executor drain interval")
	groupInName := cli.Bool("group-in-name", false, "Derive actuator names as \"{group}: {name}\"")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)
	if *secret == "" {
		*secret = os.Getenv("VRVOICE_TOKEN")
	}

	queue := dispatch.NewActionQueue()
	srv := dispatch.NewServer(queue, *secret)
	if err := srv.Listen(fmt.Sprintf("%s:%d", *host, *port)); err != nil {
		log.Error("Failed to bind", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Serve(); err != nil {
			log.Error("Listener failed", "err", err)
			stop()
		}
	}()

	opts := []dispatch.ExecutorOption{dispatch.WithTick(*tick)}
	if *groupInName {
		opts = append(opts, dispatch.WithGroupQualifiedNames())
	}
	ex := dispatch.NewExecutor(queue, actuator.Logger{}, opts...)

	log.Info("Listening for commands", "addr", srv.Addr().String(), "tick", *tick)

	// The executor owns the main goroutine; it is the only caller of the
	// actuator.
	ex.Run(ctx)

	if err := srv.Shutdown(2 * time.Second); err != nil {
		log.Warn("Shutdown incomplete", "err", err)
	}
	log.Info("Shut down")
}
