package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/lasso/internal/export"
	"github.com/MeKo-Tech/lasso/internal/project"
	"github.com/spf13/cobra"
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export <project.yaml>",
	Short: "Export a saved project to COCO format",
	Long: `Convert a saved annotation project file into a COCO-format JSON document.

Examples:
  lasso export project.yaml
  lasso export project.yaml --output annotations_coco.json
  lasso export project.yaml --with-polygons --polygon-max-points 24`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		output, _ := cmd.Flags().GetString("output")
		validateOnly, _ := cmd.Flags().GetBool("validate")

		withPolygons := cfg.Export.WithPolygons
		if cmd.Flags().Changed("with-polygons") {
			withPolygons, _ = cmd.Flags().GetBool("with-polygons")
		}

		polygonMaxPoints := cfg.Export.PolygonMaxPoints
		if cmd.Flags().Changed("polygon-max-points") {
			polygonMaxPoints, _ = cmd.Flags().GetInt("polygon-max-points")
		}

		proj, err := project.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		doc := export.ToCOCO(proj.Images, proj.Categories, proj.Annotations, export.Options{
			WithPolygons:     withPolygons,
			PolygonMaxPoints: polygonMaxPoints,
		})

		if problems := export.Validate(doc); len(problems) > 0 {
			for _, p := range problems {
				slog.Warn("Export validation problem", "problem", p)
			}
			if validateOnly {
				return fmt.Errorf("export has %d validation problems", len(problems))
			}
		}
		if validateOnly {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Valid: %d images, %d annotations, %d categories\n",
				len(doc.Images), len(doc.Annotations), len(doc.Categories))
			return nil
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode COCO document: %w", err)
		}
		data = append(data, '\n')

		if output == "" || output == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		slog.Info("Exported project",
			"project", proj.Name,
			"output", output,
			"images", len(doc.Images),
			"annotations", len(doc.Annotations))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	exportCmd.Flags().Bool("with-polygons", false, "derive polygon vertices for each mask")
	exportCmd.Flags().Int("polygon-max-points", 20, "maximum vertices per derived polygon")
	exportCmd.Flags().Bool("validate", false, "validate the export without writing it")
}
