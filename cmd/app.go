package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/internal/cache"
	"github.com/MimeLyc/lecture-pipeline/internal/chunker"
	"github.com/MimeLyc/lecture-pipeline/internal/config"
	"github.com/MimeLyc/lecture-pipeline/internal/httpapi"
	"github.com/MimeLyc/lecture-pipeline/internal/jobs"
	"github.com/MimeLyc/lecture-pipeline/internal/llm"
	"github.com/MimeLyc/lecture-pipeline/internal/media"
	"github.com/MimeLyc/lecture-pipeline/internal/persistence"
	"github.com/MimeLyc/lecture-pipeline/internal/pipeline"
	"github.com/MimeLyc/lecture-pipeline/internal/service"
	"github.com/MimeLyc/lecture-pipeline/internal/summarize"
	"github.com/MimeLyc/lecture-pipeline/internal/tracing"
	"github.com/MimeLyc/lecture-pipeline/internal/transcribe"
	"github.com/MimeLyc/lecture-pipeline/internal/transcript"
	"github.com/MimeLyc/lecture-pipeline/pkg/log"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const modelProbeTimeout = 3 * time.Second

type app struct {
	store        *persistence.SQLStore
	queue        *jobs.Queue
	orchestrator *pipeline.Orchestrator
	maintenance  *service.Maintenance
	cron         *cron.Cron
	http         *httpapi.Server
	closers      []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown: %v", err)
		}
	})

	a.store, err = persistence.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.store.Close() })
	log.Info("Using %s lecture store", cfg.Database.Driver)

	statusCache, err := newStatusCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if c, ok := statusCache.(*cache.RedisStatusCache); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	transcripts, err := newTranscriptStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	providers, err := config.LoadProviders(cfg.Pipeline.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	ollama, err := llm.NewClient(&llm.Config{
		APIURL:  cfg.Ollama.URL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}

	logLocalModels(ctx, ollama, cfg.Ollama.Model)

	tDeps := transcribe.Deps{
		Extractor:  media.NewFFmpeg(cfg.Whisper.FFmpegPaths...),
		Whisper:    cfg.Whisper,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	sDeps := summarize.Deps{Local: ollama}
	if cfg.Hosted.Enabled() {
		hosted, err := llm.NewHostedClient(cfg.Hosted.APIKey, cfg.Hosted.BaseURL, cfg.Hosted.ChatModel)
		if err != nil {
			return nil, fmt.Errorf("hosted client: %w", err)
		}
		tDeps.Hosted = hosted
		sDeps.Hosted = hosted
	}

	transcriber, err := transcribe.NewChainFromNames(providers.Transcription, tDeps)
	if err != nil {
		return nil, err
	}
	summarizer, err := summarize.NewSummarizerFromNames(providers.Summarization, sDeps)
	if err != nil {
		return nil, err
	}
	answerer, err := summarize.NewAnswererFromNames(providers.Chat, sDeps)
	if err != nil {
		return nil, err
	}
	log.Info("Providers: transcription=%v summarization=%v chat=%v",
		transcriber.Providers(), summarizer.Providers(), answerer.Providers())

	a.orchestrator = pipeline.New(pipeline.Deps{
		Store:       a.store,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Chunker:     chunker.New(cfg.Pipeline.ChunkWords),
		Transcripts: transcripts,
		Cache:       statusCache,
		VideosDir:   cfg.Storage.VideosDir(),
	})

	var lectures *service.LectureService
	a.queue = jobs.NewQueue(cfg.Pipeline.WorkerCount, a.store,
		jobs.WithTimeout(cfg.Pipeline.Timeout),
		jobs.WithClassifier(func(err error) string { return service.KindOf(err).String() }),
		jobs.WithFinishHook(func(j *jobs.Job) { lectures.JobFinished(j) }),
	)

	lectures = service.NewLectureService(service.Deps{
		Store:     a.store,
		Queue:     a.queue,
		Answerer:  answerer,
		Cache:     statusCache,
		VideosDir: cfg.Storage.VideosDir(),
	})

	a.cron = cron.New()
	a.maintenance = service.NewMaintenance(cfg.Storage.VideosDir(), cfg.Maintenance.CronExpr, cfg.Maintenance.OrphanMaxAge, a.cron)

	a.http = httpapi.NewServer(lectures, a.queue,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIStaticDir != ""),
		httpapi.WithMaintenance(a.maintenance),
	)
	return a, nil
}

// logLocalModels reports what the local server has pulled. An unreachable
// server only means the ollama stages will fall through.
func logLocalModels(ctx context.Context, client *llm.Client, want string) {
	ctx, cancel := context.WithTimeout(ctx, modelProbeTimeout)
	defer cancel()
	models, err := client.ListModels(ctx)
	if err != nil {
		log.Warn("Local LLM unavailable, summaries fall through to the next provider: %v", err)
		return
	}
	names := make([]string, 0, len(models))
	found := false
	for _, m := range models {
		names = append(names, m.Name)
		if m.Name == want || strings.TrimSuffix(m.Name, ":latest") == want {
			found = true
		}
	}
	log.Info("Local LLM models: %v", names)
	if !found {
		log.Warn("Model %s is not pulled on the local LLM server", want)
	}
}

func newStatusCache(ctx context.Context, cfg config.CacheConfig) (cache.StatusCache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.TTL), nil
	}
	c, err := cache.NewRedisStatusCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("redis status cache: %w", err)
	}
	log.Info("Using redis status cache at %s", cfg.RedisAddr)
	return c, nil
}

func newTranscriptStore(ctx context.Context, cfg *config.Config) (transcript.Store, error) {
	primary := transcript.NewFileStore(cfg.Storage.TranscriptsDir())
	if !cfg.ObjectStore.Enabled() {
		return primary, nil
	}
	oc := cfg.ObjectStore
	mirror, err := transcript.NewObjectStore(ctx, oc.Endpoint, oc.AccessKey, oc.SecretKey, oc.Bucket, oc.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	log.Info("Mirroring transcripts to bucket %s", oc.Bucket)
	return transcript.NewMirror(primary, mirror), nil
}
