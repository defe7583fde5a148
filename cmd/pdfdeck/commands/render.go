package commands

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pdfdeck/pdfdeck/internal/render"
)

var (
	renderOutDir  string
	renderDPI     int
	renderQuality int
	renderFormat  string
)

var renderCmd = &cobra.Command{
	Use:   "render <pdf>",
	Short: "Rasterize every page of a PDF to image files",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutDir, "out", "o", ".", "output directory")
	renderCmd.Flags().IntVar(&renderDPI, "dpi", 144, "render resolution")
	renderCmd.Flags().IntVarP(&renderQuality, "quality", "q", 90, "JPEG quality (jpg format only)")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "jpg", "output format: jpg or png")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	if renderFormat != "jpg" && renderFormat != "png" {
		return fmt.Errorf("unsupported format %q (want jpg or png)", renderFormat)
	}

	pdfPath := args[0]
	if err := os.MkdirAll(renderOutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	engine := render.NewEngine()
	doc, err := engine.Open(pdfPath)
	if err != nil {
		return err
	}
	defer doc.Close()

	total := doc.PageCount()
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
	)

	for pageNum := 1; pageNum <= total; pageNum++ {
		img, err := doc.RenderPage(pageNum, float64(renderDPI))
		if err != nil {
			return err
		}

		outPath := filepath.Join(renderOutDir, fmt.Sprintf("page_%03d.%s", pageNum, renderFormat))
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}

		if renderFormat == "png" {
			err = png.Encode(out, img)
		} else {
			err = jpeg.Encode(out, img, &jpeg.Options{Quality: renderQuality})
		}
		out.Close()
		if err != nil {
			return fmt.Errorf("encode page %d: %w", pageNum, err)
		}

		_ = bar.Add(1)
	}

	color.Green("Rendered %d pages to %s", total, renderOutDir)
	return nil
}
