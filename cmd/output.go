package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"lulu_studio/asset"
	"lulu_studio/core"
	"lulu_studio/imagegen"
	"lulu_studio/logging"
)

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
	idColor      = color.New(color.FgMagenta)
)

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, "! "+format+"\n", args...)
}

func printHeader(w io.Writer, title string) {
	headerColor.Fprintf(w, "━━━ %s ━━━\n", title)
}

// printError prints err and, for configuration errors, the action that
// fixes it.
func printError(w io.Writer, err error) {
	if cfgErr, ok := core.IsConfigError(err); ok {
		errorColor.Fprintf(w, "✗ %s\n", cfgErr.Message)
		if cfgErr.Action != "" {
			dimColor.Fprintf(w, "  └─ %s\n", cfgErr.Action)
		}
	} else {
		errorColor.Fprintf(w, "✗ %s\n", err)
	}
	if hint := errorHint(err); hint != "" {
		dimColor.Fprintf(w, "  └─ %s\n", hint)
	}
}

// printRecordLine prints one history entry on a single line.
func printRecordLine(w io.Writer, rec asset.Record, now time.Time) {
	idColor.Fprintf(w, "%s", rec.ID)
	dimColor.Fprintf(w, "  %-8s %-5s", core.FormatAge(now.Sub(rec.CreatedAt))+" ago", rec.AspectRatio)
	if rec.IsUpscaled() {
		successColor.Fprint(w, " 4K")
	} else {
		fmt.Fprint(w, "   ")
	}
	fmt.Fprintf(w, "  %s\n", logging.PromptPreview(rec.Prompt))
}

// printRecord prints every field of a history entry.
func printRecord(w io.Writer, rec asset.Record, now time.Time) {
	field := func(name, value string) {
		dimColor.Fprintf(w, "%-13s", name)
		fmt.Fprintln(w, value)
	}
	field("ID", rec.ID)
	field("Prompt", rec.Prompt)
	field("Aspect ratio", fmt.Sprintf("%s (%s)", rec.AspectRatio, rec.AspectRatio.Label()))
	field("Created", fmt.Sprintf("%s (%s ago)", rec.CreatedAt.Local().Format(time.DateTime), core.FormatAge(now.Sub(rec.CreatedAt))))
	field("Image", imageSummary(rec))
	field("Upscaled", fmt.Sprint(rec.IsUpscaled()))
	field("Download as", rec.DownloadName(imagegen.ExtensionForMime(rec.MimeType)))
}

func imageSummary(rec asset.Record) string {
	if _, data, err := imagegen.ParseDataURI(rec.ImageRef); err == nil {
		summary := fmt.Sprintf("%s, %s inline", rec.MimeType, core.FormatBytes(int64(len(data))))
		if info, err := imagegen.ProbeImage(data); err == nil {
			summary += ", " + info.String()
		}
		return summary
	}
	return rec.ImageRef
}

func printExport(w io.Writer, res *imagegen.ExportResult) {
	detail := core.FormatBytes(res.Size)
	if res.Info != nil {
		detail += ", " + res.Info.String()
	}
	printSuccess(w, "Saved %s (%s)", res.Path, detail)
}
