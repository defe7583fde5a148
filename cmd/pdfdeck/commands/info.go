package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdfdeck/pdfdeck/internal/render"
)

var infoCmd = &cobra.Command{
	Use:   "info <pdf>",
	Short: "Show page count and first-page dimensions of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	engine := render.NewEngine()
	doc, err := engine.Open(args[0])
	if err != nil {
		return err
	}
	defer doc.Close()

	total := doc.PageCount()
	color.Cyan("%s", args[0])
	fmt.Printf("  pages: %d\n", total)

	if total > 0 {
		img, err := doc.RenderPage(1, 72)
		if err != nil {
			return err
		}
		bounds := img.Bounds()
		fmt.Printf("  first page: %d x %d pt\n", bounds.Dx(), bounds.Dy())
	}

	return nil
}
