package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/infrastructure/container"
	"github.com/nutrisense/api/internal/ports/inbound"
	"github.com/nutrisense/api/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

type predictOptions struct {
	file    string
	advice  bool
	recipes bool
	pretty  bool
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the nutrition risk of one survey record",
		Long: `Predict the nutrition risk of one survey record without starting the server.

The record is a JSON object read from --file or stdin. With --advice or
--recipes the configured optional stages run as well.

Examples:
  nutrisense predict -f survey.json
  cat survey.json | nutrisense predict --advice --pretty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "Survey JSON file, - for stdin")
	cmd.Flags().BoolVar(&opts.advice, "advice", false, "Generate advice")
	cmd.Flags().BoolVar(&opts.recipes, "recipes", false, "Attach recipe suggestions (requires --advice)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

func runPredict(cmd *cobra.Command, root *rootOptions, opts *predictOptions) error {
	raw, err := readSurvey(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}

	// stdout carries the result, so logs go to stderr
	log, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var service inbound.NutritionService
	app := fx.New(
		fx.NopLogger,
		fx.Supply(container.ConfigPath(root.configPath)),
		container.CoreModule,
		fx.Replace(log),
		fx.Populate(&service),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result interface{}
	if opts.advice || opts.recipes {
		result, err = service.Recommend(ctx, raw, inbound.RecommendOptions{
			IncludeAdvice:  opts.advice || opts.recipes,
			IncludeRecipes: opts.recipes,
		})
	} else {
		result, err = service.Predict(ctx, raw)
	}
	if err != nil {
		printFieldErrors(cmd.ErrOrStderr(), err)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func readSurvey(stdin io.Reader, file string) (map[string]interface{}, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read survey: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, errors.New("survey must be a JSON object")
	}
	return raw, nil
}

func printFieldErrors(w io.Writer, err error) {
	var verr *nutrition.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	for _, f := range verr.Fields {
		if f.Accepted != "" {
			fmt.Fprintf(w, "  %s: %s (accepted: %s)\n", f.Field, f.Reason, f.Accepted)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Reason)
	}
}
