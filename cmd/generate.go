package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lulu_studio/asset"
	"lulu_studio/core"
	"lulu_studio/studio"
)

// elevatedAccessHint explains how to upscale outside the web studio, where
// no key selection dialog exists.
const elevatedAccessHint = "Set GEMINI_ELEVATED_API_KEY to a paid Gemini API key, or pass one with --key"

var (
	genAspect   string
	genStyle    string
	genNegative string
	genEnhance  bool
	genOut      string

	upscaleKey string
	upscaleOut string

	regenerateOut string
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate an image from a prompt",
	Long: `Generate an image from a prompt, add it to the history and save it.

Examples:
  lulu generate "a lighthouse at dusk"
  lulu generate --aspect 16:9 --style Anime "a fox in the snow"
  lulu generate --enhance --out ./renders "a cozy reading nook"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance <prompt>",
	Short: "Rewrite a prompt into a more detailed one",
	Long: `Rewrite a prompt into a more detailed one and print it.

The result goes to stdout alone, so it can be piped:
  lulu generate "$(lulu enhance 'a cat')"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnhance,
}

var upscaleCmd = &cobra.Command{
	Use:   "upscale [id]",
	Short: "Upscale a history image to 4K",
	Long: `Upscale a history image to 4K. Without an id the most recent image is used.

Upscaling may need a paid key. Provide one with GEMINI_ELEVATED_API_KEY
or --key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpscale,
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate [id]",
	Short: "Generate again from a history image's prompt",
	Long: `Generate a new image with the prompt and aspect ratio of a history image.
Without an id the most recent image is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRegenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genAspect, "aspect", "a", "", "Aspect ratio: 1:1, 3:4, 4:3, 16:9 or 9:16")
	generateCmd.Flags().StringVarP(&genStyle, "style", "s", "", "Style preset (see 'lulu options')")
	generateCmd.Flags().StringVarP(&genNegative, "negative", "n", "", "What the image should not contain")
	generateCmd.Flags().BoolVarP(&genEnhance, "enhance", "e", false, "Enhance the prompt before generating")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Directory to save the image to (default DOWNLOADS_DIR)")

	upscaleCmd.Flags().StringVar(&upscaleKey, "key", "", "Paid Gemini API key to use for this upscale")
	upscaleCmd.Flags().StringVarP(&upscaleOut, "out", "o", "", "Directory to save the image to (default DOWNLOADS_DIR)")

	regenerateCmd.Flags().StringVarP(&regenerateOut, "out", "o", "", "Directory to save the image to (default DOWNLOADS_DIR)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	return withApp(cmd, appOptions{client: true}, func(ctx context.Context, app *App) error {
		o := app.Studio
		if genAspect != "" {
			if err := o.SetAspectRatio(genAspect); err != nil {
				return withExitCode(core.ExitCodeConfig, core.ErrInvalidValue("--aspect", genAspect, ratioValues()))
			}
		}
		if genStyle != "" {
			if err := o.SetStyle(genStyle); err != nil {
				return withExitCode(core.ExitCodeConfig, core.ErrInvalidValue("--style", genStyle, asset.Styles))
			}
		}
		if genNegative != "" {
			o.SetNegativePrompt(genNegative)
		}

		out := cmd.OutOrStdout()
		if genEnhance {
			res := o.Enhance(ctx, prompt)
			if res.Status == studio.OutcomeSucceeded {
				prompt = res.Text
				dimColor.Fprintf(out, "Enhanced prompt: %s\n", prompt)
			} else {
				printWarning(out, "Prompt enhancement failed, using the original prompt")
			}
		}

		settings := o.Snapshot().Settings
		dimColor.Fprintf(out, "Generating %s %s image...\n", settings.AspectRatio, settings.Style)
		return finishOutcome(ctx, cmd, app, o.SubmitPrompt(ctx, prompt), genOut)
	})
}

func runEnhance(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	return withApp(cmd, appOptions{client: true}, func(ctx context.Context, app *App) error {
		res := app.Studio.Enhance(ctx, prompt)
		switch res.Status {
		case studio.OutcomeSucceeded:
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		case studio.OutcomeIgnored:
			return errors.New("prompt is empty")
		default:
			return withExitCode(core.ExitCodeGeneration, fmt.Errorf("enhance prompt: %w", outcomeErr(res)))
		}
	})
}

func runUpscale(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{client: true}, func(ctx context.Context, app *App) error {
		rec, err := selectRecord(app, args)
		if err != nil {
			return err
		}
		if rec.IsUpscaled() {
			printWarning(cmd.OutOrStdout(), "%s is already upscaled; upscaling again", rec.ID)
		}
		if upscaleKey != "" {
			if err := app.Studio.SelectCredential(upscaleKey); err != nil {
				return withExitCode(core.ExitCodeConfig, fmt.Errorf("use --key: %w", err))
			}
		}
		dimColor.Fprintf(cmd.OutOrStdout(), "Upscaling %s to 4K...\n", rec.ID)
		return finishOutcome(ctx, cmd, app, app.Studio.UpscaleCurrent(ctx), upscaleOut)
	})
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{client: true}, func(ctx context.Context, app *App) error {
		rec, err := selectRecord(app, args)
		if err != nil {
			return err
		}
		dimColor.Fprintf(cmd.OutOrStdout(), "Regenerating %q (%s)...\n", rec.Prompt, rec.AspectRatio)
		return finishOutcome(ctx, cmd, app, app.Studio.RegenerateCurrent(ctx), regenerateOut)
	})
}

// selectRecord makes the requested (or most recent) history entry current.
func selectRecord(app *App, args []string) (asset.Record, error) {
	var rec asset.Record
	var ok bool
	if len(args) == 1 {
		rec, ok = app.History.Get(args[0])
		if !ok {
			return rec, fmt.Errorf("no history entry %q (see 'lulu history list')", args[0])
		}
	} else {
		rec, ok = app.History.Latest()
		if !ok {
			return rec, errors.New("the history is empty; generate an image first")
		}
	}
	if res := app.Studio.SelectFromHistory(rec.ID); res.Status != studio.OutcomeSucceeded {
		return rec, fmt.Errorf("select %s: %s", rec.ID, res.Status)
	}
	return rec, nil
}

// finishOutcome saves a produced image or turns the outcome into an error
// carrying the matching exit code.
func finishOutcome(ctx context.Context, cmd *cobra.Command, app *App, res studio.Outcome, dir string) error {
	switch res.Status {
	case studio.OutcomeSucceeded:
		if dir == "" {
			dir = app.Exporter.DownloadsDir()
		}
		exported, err := app.Exporter.ExportTo(ctx, *res.Asset, dir)
		if err != nil {
			return fmt.Errorf("image %s was added to the history but could not be saved: %w", res.Asset.ID, err)
		}
		printExport(cmd.OutOrStdout(), exported)
		dimColor.Fprintf(cmd.OutOrStdout(), "  history id %s\n", res.Asset.ID)
		return nil
	case studio.OutcomeElevatedAccess:
		return withHint(core.ExitCodeElevatedAccess, errors.New(res.Notice.Message), elevatedAccessHint)
	case studio.OutcomeIgnored:
		return errors.New("nothing to do: the prompt is empty or no image is selected")
	default:
		return withExitCode(core.ExitCodeGeneration, outcomeErr(res))
	}
}

// outcomeErr returns the most specific error an outcome carries.
func outcomeErr(res studio.Outcome) error {
	switch {
	case res.Err != nil:
		return res.Err
	case res.Notice != nil:
		return errors.New(res.Notice.Message)
	default:
		return fmt.Errorf("operation %s", res.Status)
	}
}

func ratioValues() []string {
	values := make([]string, len(asset.AspectRatios))
	for i, r := range asset.AspectRatios {
		values[i] = string(r)
	}
	return values
}
