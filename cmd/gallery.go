package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the face gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Long: `List enrolled identities. --name filters by name, ignoring case and
diacritics ("jiri" matches "Jiří").`,
	RunE: runGalleryList,
}

var galleryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report unusable encodings and identities the matcher may confuse",
	RunE:  runGalleryCheck,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryCheckCmd)

	galleryListCmd.Flags().String("name", "", "Filter by name")
	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
	galleryCheckCmd.Flags().Bool("json", false, "Output as JSON")
}

type identityInfo struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Designation string   `json:"designation,omitempty"`
	Enrolled    bool     `json:"enrolled"`
	Threshold   *float64 `json:"threshold,omitempty"`
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	nameFilter := mustGetString(cmd, "name")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	rows, err := backend.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	query := gallery.NormalizeName(nameFilter)
	var infos []identityInfo
	for i := range rows {
		row := &rows[i]
		if query != "" && !strings.Contains(gallery.NormalizeName(row.Name), query) {
			continue
		}
		info := identityInfo{
			ID:          row.ID,
			Name:        row.Name,
			Designation: row.Designation,
			Enrolled:    row.HasEncoding(),
			Threshold:   row.Threshold,
		}
		if t, ok := cfg.Recognition.Overrides[row.ID]; ok {
			info.Threshold = &t
		}
		infos = append(infos, info)
	}

	if jsonOutput {
		return outputJSON(infos)
	}

	fmt.Printf("\n%-8s %-30s %-20s %-9s %s\n", "ID", "NAME", "DESIGNATION", "ENROLLED", "THRESHOLD")
	for _, info := range infos {
		enrolled := "no"
		if info.Enrolled {
			enrolled = "yes"
		}
		threshold := fmt.Sprintf("%.2f", cfg.Recognition.Threshold)
		if info.Threshold != nil {
			threshold = fmt.Sprintf("%.2f*", *info.Threshold)
		}
		fmt.Printf("%-8d %-30s %-20s %-9s %s\n", info.ID, info.Name, info.Designation, enrolled, threshold)
	}
	fmt.Printf("\n%d identities\n", len(infos))
	return nil
}

// collision is a pair of identities whose stored embeddings are close enough
// for one to be accepted as the other.
type collision struct {
	A        int     `json:"a"`
	B        int     `json:"b"`
	NameA    string  `json:"name_a"`
	NameB    string  `json:"name_b"`
	Distance float64 `json:"distance"`
}

type checkReport struct {
	Identities int                `json:"identities"`
	Usable     int                `json:"usable"`
	Problems   []database.Problem `json:"problems"`
	Collisions []collision        `json:"collisions"`
}

// findCollisions returns pairs closer than the stricter of their two thresholds.
func findCollisions(entries []gallery.Entry, policy gallery.Policy) []collision {
	var out []collision
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := &entries[i], &entries[j]
			d := gallery.EuclideanDistance(a.Embedding, b.Embedding)
			if d <= min(policy.ThresholdFor(a), policy.ThresholdFor(b)) {
				out = append(out, collision{A: a.ID, B: b.ID, NameA: a.Name, NameB: b.Name, Distance: d})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func runGalleryCheck(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	rows, err := backend.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	entries, problems := database.BuildGallery(rows, cfg.Gallery.EmbeddingDim)
	report := checkReport{
		Identities: len(rows),
		Usable:     len(entries),
		Problems:   problems,
		Collisions: findCollisions(entries, recognitionPolicy(cfg)),
	}

	if jsonOutput {
		return outputJSON(report)
	}

	fmt.Printf("Identities: %d, usable: %d\n", report.Identities, report.Usable)
	if len(report.Problems) > 0 {
		fmt.Printf("\nSkipped identities:\n")
		for _, p := range report.Problems {
			fmt.Printf("  %-8d %-30s %s\n", p.ID, p.Name, p.Reason)
		}
	}
	if len(report.Collisions) > 0 {
		fmt.Printf("\nIdentities close enough to be confused:\n")
		for _, c := range report.Collisions {
			fmt.Printf("  %d (%s) <-> %d (%s): %.3f\n", c.A, c.NameA, c.B, c.NameB, c.Distance)
		}
	}
	if len(report.Problems) == 0 && len(report.Collisions) == 0 {
		fmt.Println("No problems found")
	}
	return nil
}
