package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"portfolio-slides/slide-service/internal/slides"
	"portfolio-slides/slide-service/pkg/bgremove"
	"portfolio-slides/slide-service/pkg/geospatial"
	"portfolio-slides/slide-service/pkg/mapdetect"
	"portfolio-slides/slide-service/pkg/pdf"
	"portfolio-slides/slide-service/pkg/pptx"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <location>",
	Short: "Resolve a location and show where its pin lands on the map",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, argv []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		location := strings.Join(argv, " ")
		resolver := geospatial.NewResolver(geospatial.NewNominatimClient(cfg.Geocoder, logger), logger)
		res := resolver.ResolveWithSource(cmd.Context(), location)

		region := mapdetect.FallbackRegion
		if tmpl, err := slides.LoadTemplate(slides.TemplateSource{Path: cfg.Slides.TemplatePath}); err == nil {
			region = mapdetect.Detect(tmpl)
		}
		px := geospatial.NewProjection().Project(res.Point, region)

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (source %s), pixel (%d,%d) in map %v\n",
			location, res.Point, res.Source, px.X, px.Y, region)
		return nil
	},
}

var detectMapCmd = &cobra.Command{
	Use:   "detect-map <template>",
	Short: "Find the map rectangle on a slide template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, argv []string) error {
		tmpl, err := slides.LoadTemplate(slides.TemplateSource{Path: argv[0]})
		if err != nil {
			return err
		}
		rect, found := mapdetect.DetectWithOptions(tmpl, mapdetect.DefaultOptions())
		if !found {
			fmt.Fprintf(cmd.OutOrStdout(), "no map outline found, using fallback %v\n", rect)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "map region %v (%dx%d)\n", rect, rect.Dx(), rect.Dy())
		return nil
	},
}

var removeBgCmd = &cobra.Command{
	Use:   "remove-bg <in> <out.png>",
	Short: "Cut a headshot out of its background",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, argv []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		img, err := imaging.Open(argv[0], imaging.AutoOrientation(true))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", argv[0], err)
		}

		var api *bgremove.APIClient
		if cfg.ValidateRemoveBG() == nil {
			api = bgremove.NewAPIClient(cfg.RemoveBG, logger)
		}
		res := bgremove.NewDefaultRemover(api, logger).Remove(cmd.Context(), img)

		if !strings.EqualFold(filepath.Ext(argv[1]), ".png") {
			return fmt.Errorf("output must be a .png to keep transparency")
		}
		if err := imaging.Save(res.Image, argv[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", argv[1], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (tier %s)\n", argv[1], res.Tier)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <slide.pdf|slide.pptx>",
	Short: "Print the page size or shape counts of a generated slide",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, argv []string) error {
		data, err := os.ReadFile(argv[0])
		if err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(argv[0])) {
		case ".pptx":
			s, err := pptx.Inspect(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slides %d, text boxes %d, pictures %d, shapes %d\n",
				s.Slides, s.TextBoxes, s.Pictures, s.Shapes)
		default:
			w, h, ok := pdf.MediaBox(data)
			if !ok {
				return fmt.Errorf("%s has no media box", argv[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pages %d, media box %.0fx%.0f pt\n", pdf.PageCount(data), w, h)
		}
		return nil
	},
}
