package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"portfolio-slides/slide-service/internal/app"
	"portfolio-slides/slide-service/internal/config"
	"portfolio-slides/slide-service/internal/slides"
)

var Cmd = &cobra.Command{
	Use:           "slidegen",
	Short:         "Generate portfolio slides from company records",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var args struct {
	config   string
	debug    bool
	template string
	format   string
}

func init() {
	Cmd.PersistentFlags().StringVar(&args.config, "config", "", "path to a JSON config file")
	Cmd.PersistentFlags().BoolVar(&args.debug, "debug", false, "enable development logging")
	Cmd.PersistentFlags().StringVar(&args.template, "template", "", "slide template image (overrides SLIDE_TEMPLATE_PATH)")
	Cmd.PersistentFlags().StringVar(&args.format, "format", "", "output format: pdf or pptx")

	Cmd.AddCommand(generateCmd, batchCmd, deckCmd, geocodeCmd, detectMapCmd, removeBgCmd, inspectCmd)
}

func main() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration with command-line overrides and builds a logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(args.config)
	if err != nil {
		return nil, nil, err
	}
	if args.template != "" {
		cfg.Slides.TemplatePath = args.template
	}
	if args.format != "" {
		cfg.Slides.Format = args.format
	}
	if args.debug {
		cfg.Logging.Level = "debug"
	}

	logger, err := app.NewLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// loadCompany reads a company record from YAML (.yaml, .yml) or JSON
func loadCompany(path string) (slides.CompanyRecord, error) {
	var record slides.CompanyRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return record, fmt.Errorf("failed to read company file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &record)
	default:
		err = json.Unmarshal(data, &record)
	}
	if err != nil {
		return record, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return record, record.Validate()
}

// readImages reads optional image files; empty paths are skipped
func readImages(paths ...string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		out = append(out, data)
	}
	return out, nil
}

func readOptional(path string) ([]byte, error) {
	images, err := readImages(path)
	if err != nil || len(images) == 0 {
		return nil, err
	}
	return images[0], nil
}
