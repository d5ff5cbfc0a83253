package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/app"
	"portfolio-slides/slide-service/internal/batch"
	"portfolio-slides/slide-service/internal/onboarding"
	"portfolio-slides/slide-service/internal/slides"
)

var generateArgs struct {
	company   string
	headshots []string
	logo      string
	mapImage  string
	strategy  string
	out       string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one slide from a company file",
	RunE:  runGenerate,
}

var batchArgs struct {
	xlsx     string
	out      string
	images   string
	report   string
	strategy string
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Render one slide per spreadsheet row",
	RunE:  runBatch,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateArgs.company, "company", "", "company record (.json, .yaml)")
	f.StringArrayVar(&generateArgs.headshots, "headshot", nil, "headshot image, repeatable")
	f.StringVar(&generateArgs.logo, "logo", "", "logo image")
	f.StringVar(&generateArgs.mapImage, "map", "", "pre-rendered map image pasted into the map region")
	f.StringVar(&generateArgs.strategy, "strategy", "", "composition strategy (template, hosted)")
	f.StringVarP(&generateArgs.out, "out", "o", "", "output file (default <Company>_slide.<ext>)")
	_ = generateCmd.MarkFlagRequired("company")

	b := batchCmd.Flags()
	b.StringVar(&batchArgs.xlsx, "xlsx", "", "spreadsheet (.xlsx or .csv) with one company per row")
	b.StringVar(&batchArgs.out, "out", "slides", "output directory")
	b.StringVar(&batchArgs.images, "images", "", "base directory for relative headshot and logo paths (default: the spreadsheet's)")
	b.StringVar(&batchArgs.report, "report", "", "write a run report workbook here (default <out>/report.xlsx)")
	b.StringVar(&batchArgs.strategy, "strategy", "", "composition strategy (template, hosted)")
	_ = batchCmd.MarkFlagRequired("xlsx")
}

func runGenerate(cmd *cobra.Command, argv []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	company, err := loadCompany(generateArgs.company)
	if err != nil {
		return err
	}
	headshots, err := readImages(generateArgs.headshots...)
	if err != nil {
		return err
	}
	logo, err := readOptional(generateArgs.logo)
	if err != nil {
		return err
	}
	mapImage, err := readOptional(generateArgs.mapImage)
	if err != nil {
		return err
	}
	if len(headshots) == 0 {
		headshots = [][]byte{onboarding.Placeholder()}
	}

	compositor, err := app.NewCompositor(cfg, logger)
	if err != nil {
		return err
	}
	slide, err := compositor.ComposeWith(cmd.Context(), generateArgs.strategy, slides.Input{
		Company:   company,
		Headshots: headshots,
		Logo:      logo,
		MapImage:  mapImage,
	})
	if err != nil {
		return fmt.Errorf("failed to generate slide: %w", err)
	}

	out := generateArgs.out
	if out == "" {
		out = slides.SlideFilename(company.Name, slide.Format)
	}
	if err := os.WriteFile(out, slide.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write slide: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %dx%d)\n", out, slide.Format, slide.Width, slide.Height)
	if len(slide.Degraded) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "degraded steps: %s\n", strings.Join(slide.Degraded, ", "))
	}
	return nil
}

func runBatch(cmd *cobra.Command, argv []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	sheet, err := os.Open(batchArgs.xlsx)
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	read := batch.ReadCompanies
	if strings.EqualFold(filepath.Ext(batchArgs.xlsx), ".csv") {
		read = batch.ReadCompaniesCSV
	}
	rows, err := read(sheet)
	sheet.Close()
	if err != nil {
		return err
	}

	compositor, err := app.NewCompositor(cfg, logger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(batchArgs.out, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	base := batchArgs.images
	if base == "" {
		base = filepath.Dir(batchArgs.xlsx)
	}

	outcomes := make([]batch.Outcome, 0, len(rows))
	failed := 0
	for _, row := range rows {
		o := renderRow(cmd.Context(), compositor, row, base)
		if o.Err != nil {
			failed++
			logger.Error("Failed to generate slide",
				zap.Int("row", row.Line),
				zap.String("company", row.Company.Name),
				zap.Error(o.Err))
		}
		outcomes = append(outcomes, o)
	}

	report := batchArgs.report
	if report == "" {
		report = filepath.Join(batchArgs.out, "report.xlsx")
	}
	f, err := os.Create(report)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()
	if err := batch.WriteReport(f, outcomes); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "generated %d of %d slides, report %s\n", len(rows)-failed, len(rows), report)
	if failed > 0 {
		return fmt.Errorf("%d slides failed", failed)
	}
	return nil
}

func renderRow(ctx context.Context, compositor *slides.Compositor, row batch.Row, base string) batch.Outcome {
	o := batch.Outcome{Line: row.Line, Company: row.Company.Name}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	headshots, err := readImages(resolve(row.Headshot))
	if err != nil {
		o.Err = err
		return o
	}
	if len(headshots) == 0 {
		headshots = [][]byte{onboarding.Placeholder()}
	}
	logo, err := readOptional(resolve(row.Logo))
	if err != nil {
		o.Err = err
		return o
	}

	slide, err := compositor.ComposeWith(ctx, batchArgs.strategy, slides.Input{
		Company:   row.Company,
		Headshots: headshots,
		Logo:      logo,
	})
	if err != nil {
		o.Err = err
		return o
	}

	o.File = slides.SlideFilename(row.Company.Name, slide.Format)
	o.Degraded = slide.Degraded
	if err := os.WriteFile(filepath.Join(batchArgs.out, o.File), slide.Data, 0o644); err != nil {
		o.Err = fmt.Errorf("failed to write slide: %w", err)
	}
	return o
}
