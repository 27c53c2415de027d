package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/punch-kiosk/internal/capture"
	"github.com/kozaktomas/punch-kiosk/internal/constants"
	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/kiosk"
	"github.com/kozaktomas/punch-kiosk/internal/vision"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Compute embeddings for identities that have a photo but no encoding",
	Long: `Compute face embeddings for every identity with a reference image and no
stored encoding. Images may be data URLs or raw base64. Rows that fail are
reported and skipped.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("workers", constants.WorkerPoolSize, "Number of parallel workers")
	enrollCmd.Flags().Int("limit", 0, "Enroll at most this many identities (0 = all)")
	enrollCmd.Flags().Bool("dry-run", false, "Compute embeddings without saving them")
}

var errNoFace = errors.New("no face found")

// enrollOne decodes the reference image and stores its embedding.
func enrollOne(ctx context.Context, encoder kiosk.Encoder, writer database.IdentityWriter, p database.PendingEnrollment, dim int, dryRun bool) error {
	img, err := capture.DecodeEncodedImage(p.Image)
	if err != nil {
		return err
	}
	img = capture.FitWithin(img, constants.MaxImageSize)

	embedding, err := encoder.Encode(ctx, img, image.Rectangle{})
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if embedding == nil {
		return errNoFace
	}
	if len(embedding) != dim {
		return fmt.Errorf("encoder returned %d values, expected %d", len(embedding), dim)
	}
	if dryRun {
		return nil
	}
	return writer.SaveEmbedding(ctx, p.ID, embedding)
}

type enrollFailure struct {
	ID   int
	Name string
	Err  error
}

func runEnroll(cmd *cobra.Command, args []string) error {
	workers := mustGetInt(cmd, "workers")
	limit := mustGetInt(cmd, "limit")
	dryRun := mustGetBool(cmd, "dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	client := vision.NewClient(cfg.Vision.URL, cfg.Vision.Timeout*5)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("vision service at %s is not healthy: %w", client.BaseURL(), err)
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	pending, err := backend.PendingEnrollments(ctx)
	if err != nil {
		return fmt.Errorf("listing pending enrollments: %w", err)
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	if len(pending) == 0 {
		fmt.Println("Every identity with a photo is already enrolled!")
		return nil
	}

	fmt.Printf("Identities to enroll: %d\n", len(pending))
	if dryRun {
		fmt.Println("DRY RUN - no embeddings will be saved")
	}
	fmt.Println()

	bar := progressbar.NewOptions(len(pending),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu       sync.Mutex
		enrolled int
		failures []enrollFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for _, p := range pending {
		g.Go(func() error {
			err := enrollOne(gctx, client, backend, p, cfg.Gallery.EmbeddingDim, dryRun)
			mu.Lock()
			if err != nil {
				failures = append(failures, enrollFailure{ID: p.ID, Name: p.Name, Err: err})
			} else {
				enrolled++
			}
			mu.Unlock()
			bar.Add(1)
			// Per-identity failures are reported at the end, only cancellation stops the run.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println()

	fmt.Printf("\nCompleted: %d enrolled, %d failed\n", enrolled, len(failures))
	for _, f := range failures {
		fmt.Printf("  %d (%s): %v\n", f.ID, f.Name, f.Err)
	}
	return nil
}
