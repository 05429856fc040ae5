// vrvoice is the voice-command client: it captures microphone (or file)
// audio, streams it through a recognition engine and dispatches matched
// commands to the scene-host listener.
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

	"golang.org/x/sync/errgroup"

	"github.com/omotayoh/vRvoice/internal/app"
	"github.com/omotayoh/vRvoice/internal/asr"
	"github.com/omotayoh/vRvoice/internal/audio"
	"github.com/omotayoh/vRvoice/internal/dispatch"
	"github.com/omotayoh/vRvoice/internal/nlu"
	"github.com/omotayoh/vRvoice/internal/nlu/openai"
	"github.com/omotayoh/vRvoice/internal/notify"
	"github.com/omotayoh/vRvoice/internal/proxy"
	"github.com/omotayoh/vRvoice/pkg/stt"
	"github.com/omotayoh/vRvoice/pkg/wire"
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
	catalogPath := cli.StringP("catalog", "c", "commands.json", "Command catalog path (.json or .yaml)")
	engine := cli.String("engine", "stream", "Recognition engine: stream or whisper")
	asrURL := cli.String("asr-url", "ws://localhost:50051/streaming", "Streaming recognition backend URL")
	modelPath := cli.String("model", "models/ggml-base.en.bin", "Whisper model path (whisper engine)")
	input := cli.StringP("input", "i", "mic", "Audio input: mic or a file path")
	host := cli.String("host", "127.0.0.1", "Listener host")
	port := cli.Int("port", 8777, "Listener port")
	token := cli.String("token", "", "Shared secret token (overrides VRVOICE_TOKEN)")
	sampleRate := cli.Int("sample-rate", 16000, "Capture sample rate in Hz")
	chunkMs := cli.Int("chunk-ms", 100, "Capture chunk duration in milliseconds")
	queueCap := cli.Int("queue-cap", 50, "Audio frame queue capacity")
	language := cli.String("language", "en-US", "Recognition language code")
	silenceTail := cli.Duration("silence-tail", 0, "Zero-amplitude tail appended after file input")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy address for NLU providers")
	chime := cli.Bool("chime", false, "Play a confirmation tone after accepted commands")
	dryRun := cli.Bool("dry-run", false, "Route commands but log instead of dispatching")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}
	if *token == "" {
		*token = os.Getenv("VRVOICE_TOKEN")
	}

	catalog, err := nlu.LoadCatalog(*catalogPath)
	if err != nil {
		log.Error("Failed to load catalog", "err", err)
		os.Exit(1)
	}
	log.Debug("Loaded catalog", "phrases", catalog.Len())

	providerCfg := openai.Config{APIKey: apiKey}
	if *proxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		providerCfg.HTTPClient = httpClient
		log.Debug("Loaded proxy")
	}
	provider, err := openai.New(providerCfg)
	if err != nil {
		log.Error("Failed to build NLU provider", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := nlu.NewRouter(ctx, provider, provider, catalog)
	if err != nil {
		log.Error("Failed to build router", "err", err)
		os.Exit(1)
	}

	captureCfg := audio.CaptureConfig{
		SampleRate: *sampleRate,
		ChunkDur:   time.Duration(*chunkMs) * time.Millisecond,
	}
	queue := audio.NewQueue(*queueCap)
	feed := audio.NewFeed(queue, audio.DefaultPollInterval)

	recognizer, cleanup, err := buildRecognizer(*engine, *asrURL, *modelPath, *language, *silenceTail, captureCfg)
	if err != nil {
		log.Error("Failed to build recognizer", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	pipeline := &app.Pipeline{
		Router:     router,
		Dispatcher: buildDispatcher(*dryRun, *host, *port, *token),
	}
	if *chime {
		pipeline.Notify = notify.Chime
	}

	g, gctx := errgroup.WithContext(ctx)
	if *input == "mic" {
		capture := audio.NewCapture(captureCfg, queue)
		if err := capture.Start(); err != nil {
			log.Error("Failed to start capture", "err", err)
			os.Exit(1)
		}
		g.Go(func() error { return capture.Run(gctx) })
	} else {
		src := audio.NewFileSource(*input, captureCfg, queue)
		g.Go(func() error {
			if err := src.Run(gctx); err != nil {
				return err
			}
			// Leave time for the tail of the file to be recognised
			// and dispatched, then stop the whole group.
			time.Sleep(2 * time.Second)
			stop()
			return nil
		})
	}
	g.Go(func() error { return pipeline.Run(gctx, recognizer, feed) })

	log.Info("Boot up - successful", "engine", *engine, "input", *input)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("Pipeline failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

// buildRecognizer selects the recognition engine. The returned cleanup is
// always safe to call.
func buildRecognizer(engine, url, modelPath, language string, silenceTail time.Duration, cfg audio.CaptureConfig) (asr.Recognizer, func(), error) {
	switch engine {
	case "stream":
		client, err := asr.NewStreamClient(asr.StreamConfig{
			URL:         url,
			SampleRate:  cfg.SampleRate,
			Language:    language,
			Punctuation: true,
			SilenceTail: silenceTail,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return client, func() {}, nil

	case "whisper":
		tr, err := stt.NewTranscriber(modelPath)
		if err != nil {
			return nil, func() {}, err
		}
		rec := asr.NewLocalRecognizer(tr, asr.LocalConfig{
			SampleRate: cfg.SampleRate,
			Language:   language,
		})
		return rec, func() { tr.Close() }, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown engine %q (stream or whisper)", engine)
	}
}

// buildDispatcher returns the real TCP client, or a logger in dry-run mode.
func buildDispatcher(dryRun bool, host string, port int, token string) app.Dispatcher {
	if dryRun {
		return dispatcherFunc(func(group, name string) (wire.Response, error) {
			log.Info("Dry run, not dispatching", "group", group, "name", name)
			return wire.Response{Ok: true}, nil
		})
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	opts := []dispatch.ClientOption{}
	if token != "" {
		opts = append(opts, dispatch.WithToken(token))
	}
	return dispatch.NewClient(addr, opts...)
}

type dispatcherFunc func(group, name string) (wire.Response, error)

func (f dispatcherFunc) ActivatePair(group, name string) (wire.Response, error) {
	return f(group, name)
}
