package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"takecam/catalog"
	"takecam/config"
	"takecam/keys"
	"takecam/notify"
	"takecam/serve"
	"takecam/util"
	"takecam/video"
	"takecam/video/cv"
	"takecam/video/sink"
	"takecam/video/source"
)

var (
	configPath = flag.String("config", "", "JSON configuration file, reloaded on change.")
	port       = flag.Int("port", 8080, "Port to host the preview and metrics server, 0 to disable.")
	verbose    = flag.Bool("v", false, "Log every frame.")
)

// patternSize is the frame size of the synthetic source.
var patternSize = image.Point{X: 640, Y: 480}

// newProducer builds the output chain for one take from the current config.
func newProducer(cfg *config.Config, live sink.Sink) sink.Producer {
	return sink.ProducerFunc(func(path string, o sink.Options) (sink.Sink, error) {
		var s sink.Sink
		var err error
		switch cfg.Encoder {
		case config.EncoderFFmpeg:
			s, err = (&sink.FFmpegProducer{Preset: cfg.FFmpegPreset}).New(path, o)
		default:
			s, err = cv.VideoWriterProducer{}.New(path, o)
		}
		if err != nil {
			return nil, err
		}
		if live != nil {
			s = sink.NewTee(s, live)
		}
		if cfg.Thumbnails {
			s = cv.NewThumbSink(video.ThumbPath(path), s)
		}
		if cfg.TimestampLabel != "" {
			s = cv.NewTimestampSink(cfg.TimestampLabel, s)
		}
		return s, nil
	})
}

func takeSettings(live sink.Sink) func() video.TakeSettings {
	return func() video.TakeSettings {
		cfg := config.Get()
		opener := cv.Opener(cfg.Device)
		if cfg.Synthetic {
			opener = func() (source.Source, error) {
				return source.NewPattern(patternSize, int(cfg.FPS)), nil
			}
		}
		return video.TakeSettings{
			Source:   opener,
			Producer: newProducer(cfg, live),
			FourCC:   cfg.FourCC,
			FPS:      cfg.FPS,
		}
	}
}

func serveHTTP(ctx context.Context, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: handlers.CombinedLoggingHandler(log.StandardLogger().Writer(), mux),
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	log.Infof("Hosting preview and metrics on port %d", *port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("HTTP server failed: %v", err)
	}
}

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *configPath != "" {
		if err := config.Load(ctx, *configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	cfg := config.Get()

	if cfg.Encoder == config.EncoderFFmpeg {
		if ffmpegp, err := util.LocateFFmpeg(); err != nil {
			fmt.Println("Unable to locate ffmpeg binary", err)
			fmt.Println("FFmpeg is required for the ffmpeg encoder.")
			fmt.Println("Either ensure the ffmpeg binary is in $PATH,")
			fmt.Println("or set the FFMPEG environment variable.")
			os.Exit(1)
		} else {
			log.Infof("Located ffmpeg binary, %v", ffmpegp)
		}
	}

	fs, err := video.NewFilesystem(cfg.BasePath, time.Now())
	if err != nil {
		log.Fatalf("Failed to create session directory: %v", err)
	}

	mode, err := keys.ParseMode(cfg.KeyMode)
	if err != nil {
		log.Fatalf("%v", err)
	}

	meta := &serve.MetaServer{FS: fs}
	metaws := serve.NewMetaUpdater()
	notifier := &notify.Notifier{
		Listeners: []notify.NotifyListener{metaws},
	}
	listeners := []video.TakeListener{meta, metaws, notifier}

	mux := http.NewServeMux()

	if cfg.DatabaseDSN != "" {
		cat, err := catalog.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("Failed to open take catalog: %v", err)
		}
		defer cat.Close()
		listeners = append(listeners, cat)
		mux.Handle("/history", &serve.HistoryServer{Catalog: cat})

		wp, err := notify.NewWebPush(cat.DB(), cfg.PushSubscriber)
		if err != nil {
			log.Fatalf("Failed to set up web push: %v", err)
		}
		wp.RegisterHandlers(mux)
		notifier.Listeners = append(notifier.Listeners, wp)
	}

	var live sink.Sink
	if *port != 0 {
		mjpegServer := cv.NewMJPEGServer()
		stream, err := mjpegServer.NewStream("live")
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer stream.Remove()
		live = stream

		mux.Handle("/mjpeg", mjpegServer)
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/takes", meta)
		mux.Handle("/takes/ws", metaws)
		mux.Handle("/video", serve.NewVideoServer(fs))
		mux.Handle("/thumb", serve.NewThumbServer(fs))
		mux.Handle("/delete", &serve.DeleteServer{FS: fs, Recording: meta.Recording})
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		go serveHTTP(ctx, mux)
	}

	hook := keys.Start(mode)
	defer hook.Close()

	ctrl := &video.Controller{
		FS:        fs,
		Keys:      hook,
		Settings:  takeSettings(live),
		Listeners: listeners,
	}
	if err := ctrl.Run(ctx); err != nil {
		log.Errorf("Session failed: %v", err)
	}
	notifier.Wait()
}
