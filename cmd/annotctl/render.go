package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/convert"
)

var (
	renderOut string
	renderDPI float64
)

// renderCmd converts a PDF to page images without going through the HTTP
// upload path. Useful for pre-warming the cache or debugging conversion.
var renderCmd = &cobra.Command{
	Use:   "render <project-id> <pdf>",
	Short: "Render a PDF into the page image cache",
	Long: `Render every page of a PDF into the page image cache, exactly as the
upload endpoint would.

Examples:
  # Render into the configured cache directory
  annotctl render 6e2c9f1a floorplan.pdf

  # Render into an explicit directory at 300 dpi
  annotctl render --out /tmp/pages --dpi 300 6e2c9f1a floorplan.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderOut, "out", "", "cache directory (defaults to convert.cache_dir from config)")
	renderCmd.Flags().Float64Var(&renderDPI, "dpi", 0, "render DPI (defaults to convert.dpi from config)")
}

func runRender(cmd *cobra.Command, args []string) error {
	projectID, pdfPath := args[0], args[1]

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	convertCfg := &convert.Config{
		CacheDir:       cfg.Convert.CacheDir,
		DPI:            cfg.Convert.DPI,
		MaxPages:       cfg.Convert.MaxPages,
		ThumbnailWidth: cfg.Convert.ThumbnailWidth,
	}
	if renderOut != "" {
		convertCfg.CacheDir = renderOut
	}
	if renderDPI > 0 {
		convertCfg.DPI = renderDPI
	}

	svc, err := convert.NewService(convertCfg, nil, zap.NewNop())
	if err != nil {
		return err
	}

	if _, err := svc.Inspect(cmd.Context(), pdfPath); err != nil {
		return err
	}
	pages, err := svc.Convert(cmd.Context(), projectID, pdfPath)
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %d pages into %s\n", len(pages), convertCfg.CacheDir)
	for _, p := range pages {
		fmt.Printf("  page %d: %dx%d px (%.0fx%.0f pt)\n", p.Page, p.WidthPx, p.HeightPx, p.WidthPt, p.HeightPt)
	}
	return nil
}
