package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/punch-kiosk/internal/capture"
	"github.com/kozaktomas/punch-kiosk/internal/config"
	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
	"github.com/kozaktomas/punch-kiosk/internal/kiosk"
	"github.com/kozaktomas/punch-kiosk/internal/metrics"
	"github.com/kozaktomas/punch-kiosk/internal/vision"
	"github.com/kozaktomas/punch-kiosk/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk",
	Long: `Run the kiosk: the camera loop, the periodic gallery refresh and the web
server with the kiosk page, video feed, status stream and punch endpoint.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(c *cobra.Command) {
	c.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	c.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	c.Flags().String("camera-dir", "", "Replay images from a directory instead of CAMERA_URL")
	c.Flags().Bool("mirror", true, "Flip frames horizontally (overrides CAMERA_MIRROR)")
}

// galleryService ties the in-memory gallery to its database source.
type galleryService struct {
	*gallery.Store
	source  gallery.Source
	metrics *metrics.Metrics
}

func (g *galleryService) Reload(ctx context.Context) (int, error) {
	n, err := g.Store.Reload(ctx, g.source)
	g.metrics.ObserveGalleryReload(n, err)
	return n, err
}

func (g *galleryService) run(ctx context.Context, interval time.Duration) error {
	return g.RunRefresher(ctx, g.source, interval, g.metrics.ObserveGalleryReload)
}

func recognitionPolicy(cfg *config.Config) gallery.Policy {
	return gallery.Policy{
		DefaultThreshold: cfg.Recognition.Threshold,
		Overrides:        cfg.Recognition.Overrides,
		ConfidenceGap:    cfg.Recognition.ConfidenceGap,
	}
}

// openFrameSource picks the directory replay when configured, the camera otherwise.
func openFrameSource(cfg *config.Config) (capture.Source, error) {
	if cfg.Camera.Dir != "" {
		src, err := capture.NewDirSource(cfg.Camera.Dir)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Replaying %d images from %s\n", src.Len(), cfg.Camera.Dir)
		return src, nil
	}
	if cfg.Camera.URL == "" {
		return nil, errors.New("CAMERA_URL or CAMERA_DIR environment variable is required")
	}
	fmt.Printf("Using camera at %s\n", cfg.Camera.URL)
	return capture.NewHTTPSource(cfg.Camera.URL, 2*time.Second), nil
}

// applyServeFlags lets explicitly set flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port, ok := flagOverride(cmd, "port", cmd.Flags().GetInt); ok && port > 0 {
		cfg.Web.Port = port
	}
	if host, ok := flagOverride(cmd, "host", cmd.Flags().GetString); ok && host != "" {
		cfg.Web.Host = host
	}
	if dir, ok := flagOverride(cmd, "camera-dir", cmd.Flags().GetString); ok && dir != "" {
		cfg.Camera.Dir = dir
	}
	if mirror, ok := flagOverride(cmd, "mirror", cmd.Flags().GetBool); ok {
		cfg.Camera.Mirror = mirror
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := openFrameSource(cfg)
	if err != nil {
		return err
	}

	client := vision.NewClient(cfg.Vision.URL, cfg.Vision.Timeout)
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Health(healthCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("vision service at %s is not healthy: %w", client.BaseURL(), err)
	}
	fmt.Printf("Vision service ready at %s\n", client.BaseURL())

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	if err := backend.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	m := metrics.New()

	store := gallery.NewStore(gallery.SnapshotOptions{ANNMinEntries: cfg.Gallery.ANNMinEntries})
	galleries := &galleryService{
		Store:   store,
		source:  &database.GalleryLoader{Reader: backend, Dim: cfg.Gallery.EmbeddingDim},
		metrics: m,
	}
	n, err := galleries.Reload(ctx)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	fmt.Printf("Loaded %d identities into the gallery\n", n)
	if n == 0 {
		fmt.Println("Warning: gallery is empty, run `punch-kiosk enroll` first")
	}

	recorder := database.NewRecorder(backend, cfg.Device.ID)
	recorder.SetTimeout(cfg.Database.Timeout)

	ctrl := kiosk.NewController(kiosk.SettingsFromConfig(cfg), kiosk.Deps{
		Locator:   client,
		Encoder:   client,
		Landmarks: client,
		Matcher:   gallery.NewMatcher(store, recognitionPolicy(cfg)),
		Recorder:  recorder,
		Metrics:   m,
	})

	hub := kiosk.NewFrameHub()
	loop := &kiosk.Loop{
		Source:     source,
		Controller: ctrl,
		Hub:        hub,
		FPS:        cfg.Camera.FPS,
		Mirror:     cfg.Camera.Mirror,
		Metrics:    m,
	}

	server := web.NewServer(cfg, web.Deps{
		Kiosk:   ctrl,
		Hub:     hub,
		Gallery: galleries,
		Metrics: m,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return galleries.run(gctx, cfg.Gallery.RefreshInterval)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("Kiosk running on http://%s:%d (device %d)\n", cfg.Web.Host, cfg.Web.Port, cfg.Device.ID)
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return err
	}
	ctrl.Reset()
	return nil
}
