package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"blindmark/watermark"
	"blindmark/workflow"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
)

// runFormsWorkflow runs one guided embed or extract through s and reports
// whether the user wants another round. The session is reused so an embed's
// length pre-fills the next extract.
func runFormsWorkflow(ctx context.Context, a *app, s *workflow.Session) bool {
	var op string
	opSelect := huh.NewSelect[string]().
		Title("What would you like to do?").
		Options(
			huh.NewOption("Embed a text watermark into an image", "embed"),
			huh.NewOption("Extract a watermark from an image", "extract"),
		).
		Value(&op)

	if err := runForm(opSelect); err != nil {
		return false
	}

	var imagePath string
	startDir, _ := os.Getwd()

	filePicker := huh.NewFilePicker().
		Title("Select an image").
		Description("PNG, JPG or GIF").
		Picking(true).
		CurrentDirectory(startDir).
		ShowHidden(false).
		ShowPermissions(false).
		ShowSize(true).
		Height(15).
		AllowedTypes(watermark.SupportedImageTypes).
		Value(&imagePath)

	if err := runForm(filePicker); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return askToContinue()
		}
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}

	if op == "embed" {
		return embedForm(ctx, a, s, imagePath)
	}
	return extractForm(ctx, a, s, imagePath)
}

func embedForm(ctx context.Context, a *app, s *workflow.Session, imagePath string) bool {
	text := s.Embed.Input().Text
	textInput := huh.NewText().
		Title("Watermark text").
		Description("The text to hide inside the image").
		Placeholder("(c) 2026 ...").
		CharLimit(1000).
		Value(&text)

	if err := runForm(textInput); err != nil {
		return askToContinue()
	}

	s.Embed.SetImagePath(imagePath)
	s.Embed.SetText(text)

	var runErr error
	err := spinner.New().
		Title(s.Messages().EmbedProgress).
		Action(func() {
			_, runErr = s.RunEmbed(ctx)
		}).
		Run()
	if err == nil {
		err = runErr
	}
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}

	surf := s.Surface()
	if surf.ErrorVisible {
		fmt.Println(errorStyle.Render(surf.ErrorText))
		return askToContinue()
	}

	v := surf.Embed
	fmt.Println(boxStyle.Render(fmt.Sprintf(
		"%s\n\n"+
			"Source:   %s\n"+
			"Length:   %s\n"+
			"Preview:  %s\n"+
			"Download: %s",
		v.Message, v.SourceName, v.Length, v.PreviewURL, v.DownloadName,
	)))
	a.recordEmbed(ctx, v)

	var save bool
	confirm := huh.NewConfirm().
		Title("Save the processed image to " + a.cfg.Download.Dir + "?").
		Affirmative("Yes, save it").
		Negative("No").
		Value(&save)

	if err := runForm(confirm); err != nil || !save {
		return askToContinue()
	}

	var res *watermark.DownloadResult
	var dlErr error
	_ = spinner.New().
		Title("Downloading " + v.DownloadName + "...").
		Action(func() {
			res, dlErr = a.client.Download(ctx, v.Locator, a.cfg.Download.Dir, a.cfg.Download.Overwrite)
		}).
		Run()

	if dlErr != nil {
		fmt.Println(errorStyle.Render("Download failed: " + dlErr.Error()))
	} else if res != nil {
		fmt.Println(successStyle.Render(fmt.Sprintf("Saved %s (%s)", res.Path, watermark.FormatSize(res.Bytes))))
	}
	return askToContinue()
}

func extractForm(ctx context.Context, a *app, s *workflow.Session, imagePath string) bool {
	length := s.Extract.Input().Length
	if length == "" {
		if found, ok := a.lookupLength(ctx, imagePath); ok {
			length = found
		}
	}

	lengthInput := huh.NewInput().
		Title("Watermark length").
		Description("Shown after embedding; pre-filled from your last embed or history").
		Placeholder("e.g. 232").
		Value(&length)

	if err := runForm(lengthInput); err != nil {
		return askToContinue()
	}

	s.Extract.SetImagePath(imagePath)
	s.Extract.SetLength(length)

	var runErr error
	err := spinner.New().
		Title(s.Messages().ExtractProgress).
		Action(func() {
			_, runErr = s.RunExtract(ctx)
		}).
		Run()
	if err == nil {
		err = runErr
	}
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}

	surf := s.Surface()
	if surf.ErrorVisible {
		fmt.Println(errorStyle.Render(surf.ErrorText))
		return askToContinue()
	}

	fmt.Println(boxStyle.Render("Extracted text\n\n" + surf.ExtractedText))
	return askToContinue()
}

func runForm(field huh.Field) error {
	return huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
}

func askToContinue() bool {
	var choice string
	selectNext := huh.NewSelect[string]().
		Title("What next?").
		Options(
			huh.NewOption("Another image", "another"),
			huh.NewOption("Exit", "exit"),
		).
		Value(&choice)

	if err := runForm(selectNext); err != nil {
		return false
	}

	return choice == "another"
}
