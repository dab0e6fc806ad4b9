package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blindmark/config"
	"blindmark/history"
	"blindmark/watermark"
	"blindmark/workflow"
)

// EmbedOptions holds the arguments of the embed command
type EmbedOptions struct {
	Image string
	Text  string
	Save  bool
}

// ExtractOptions holds the arguments of the extract command
type ExtractOptions struct {
	Image  string
	Length string
}

// parseEmbedArgs parses embed command arguments in any order
func parseEmbedArgs(args []string) (*EmbedOptions, error) {
	opts := &EmbedOptions{}
	var images []string

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-t", "--text", "-text":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s needs a value", arg)
			}
			opts.Text = args[i+1]
			i++
		case "-s", "--save", "-save":
			opts.Save = true
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown option %s", arg)
			}
			images = append(images, arg)
		}
	}

	if len(images) > 1 {
		return nil, fmt.Errorf("expected one image, got %d", len(images))
	}
	if len(images) == 1 {
		opts.Image = images[0]
	}
	return opts, nil
}

// parseExtractArgs parses extract command arguments in any order
func parseExtractArgs(args []string) (*ExtractOptions, error) {
	opts := &ExtractOptions{}
	var images []string

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-l", "--length", "-length":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s needs a value", arg)
			}
			opts.Length = args[i+1]
			i++
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown option %s", arg)
			}
			images = append(images, arg)
		}
	}

	if len(images) > 1 {
		return nil, fmt.Errorf("expected one image, got %d", len(images))
	}
	if len(images) == 1 {
		opts.Image = images[0]
	}
	return opts, nil
}

// parseHistoryArgs returns the number of records to list
func parseHistoryArgs(args []string) (int, error) {
	limit := 20
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-n", "--limit", "-limit":
			if i+1 >= len(args) {
				return 0, fmt.Errorf("%s needs a value", arg)
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid limit %q", args[i+1])
			}
			limit = n
			i++
		default:
			return 0, fmt.Errorf("unexpected argument %s", arg)
		}
	}
	return limit, nil
}

// runEmbed embeds a watermark non-interactively and returns the exit code
func (a *app) runEmbed(ctx context.Context, opts *EmbedOptions) int {
	s := a.session()
	s.Embed.SetImagePath(opts.Image)
	s.Embed.SetText(opts.Text)

	a.println(infoStyle.Render(s.Messages().EmbedProgress))
	if _, err := s.RunEmbed(ctx); err != nil {
		a.println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}

	surf := s.Surface()
	if surf.ErrorVisible {
		a.println(errorStyle.Render(surf.ErrorText))
		return 1
	}

	v := surf.Embed
	a.println(successStyle.Render(v.Message))
	a.println(infoStyle.Render("  Length:   " + v.Length))
	a.println(infoStyle.Render("  Preview:  " + v.PreviewURL))
	a.println(infoStyle.Render("  Download: " + v.DownloadName))

	a.recordEmbed(ctx, v)

	if opts.Save {
		res, err := a.client.Download(ctx, v.Locator, a.cfg.Download.Dir, a.cfg.Download.Overwrite)
		if err != nil {
			a.println(errorStyle.Render("Download failed: " + err.Error()))
			return 1
		}
		a.println(successStyle.Render(fmt.Sprintf("Saved %s (%s)", res.Path, watermark.FormatSize(res.Bytes))))
	}
	return 0
}

// recordEmbed stores a successful embed; failures are logged, never fatal
func (a *app) recordEmbed(ctx context.Context, v workflow.EmbedView) {
	if a.store == nil {
		return
	}
	length, err := strconv.Atoi(v.Length)
	if err != nil {
		a.logger.Warn("record embed: bad length", "length", v.Length)
		return
	}
	_, err = a.store.Add(ctx, history.Record{
		SourceName:   v.SourceName,
		ProcessedURL: v.DownloadURL,
		DownloadName: v.DownloadName,
		Length:       length,
		Text:         v.Text,
	})
	if err != nil {
		a.logger.Warn("record embed", "error", err)
	}
}

// lookupLength finds the watermark length of image in history
func (a *app) lookupLength(ctx context.Context, image string) (string, bool) {
	if a.store == nil || image == "" {
		return "", false
	}
	n, err := a.store.LengthFor(ctx, filepath.Base(image))
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			a.logger.Warn("history lookup", "image", image, "error", err)
		}
		return "", false
	}
	return strconv.Itoa(n), true
}

// runExtract extracts a watermark non-interactively and returns the exit code
func (a *app) runExtract(ctx context.Context, opts *ExtractOptions) int {
	s := a.session()
	s.Extract.SetImagePath(opts.Image)
	s.Extract.SetLength(opts.Length)

	if strings.TrimSpace(opts.Length) == "" {
		if length, ok := a.lookupLength(ctx, opts.Image); ok {
			s.Extract.SetLength(length)
			a.println(infoStyle.Render("Using length " + length + " from history"))
		}
	}

	a.println(infoStyle.Render(s.Messages().ExtractProgress))
	if _, err := s.RunExtract(ctx); err != nil {
		a.println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}

	surf := s.Surface()
	if surf.ErrorVisible {
		a.println(errorStyle.Render(surf.ErrorText))
		return 1
	}

	a.println(successStyle.Render("Extracted text:"))
	a.println(surf.ExtractedText)
	return 0
}

// runHistory lists recent embeds
func (a *app) runHistory(ctx context.Context, limit int) int {
	if a.store == nil {
		a.println(errorStyle.Render("History is disabled (history.enabled = false or database unavailable)"))
		return 1
	}

	recs, err := a.store.Recent(ctx, limit)
	if err != nil {
		a.println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}
	if len(recs) == 0 {
		a.println(infoStyle.Render("No embeds recorded yet."))
		return 0
	}

	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %-24s -> %-24s  len %-5d %q",
			r.CreatedAt.Local().Format(time.DateTime), r.SourceName, r.DownloadName, r.Length, r.Text)
	}
	a.println(boxStyle.Render(b.String()))
	return 0
}

// runConfig handles "config init" and "config path"
func runConfig(cfg config.Config, args []string, out io.Writer) int {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "init":
		path, err := config.Save(cfg)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			return 1
		}
		fmt.Fprintln(out, successStyle.Render("Wrote "+path))
		return 0
	case "path":
		fmt.Fprintln(out, config.Path())
		return 0
	default:
		fmt.Fprintln(out, errorStyle.Render("Usage: blindmark config init|path"))
		return 2
	}
}
