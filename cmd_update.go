package main

import (
	"context"
	"fmt"
	"time"

	"blindmark/config"

	"github.com/charmbracelet/huh/spinner"
	"github.com/creativeprojects/go-selfupdate"
)

// runUpdate replaces the running binary with the latest release of update.repo
func runUpdate(cfg config.Config) int {
	if version == "dev" {
		fmt.Println(infoStyle.Render("Development build; self-update is disabled."))
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var latest *selfupdate.Release
	var found bool
	var err error
	_ = spinner.New().
		Title("Checking for updates...").
		Action(func() {
			latest, found, err = selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(cfg.Update.Repo))
		}).
		Run()

	if err != nil {
		fmt.Println(errorStyle.Render("Error checking for updates: " + err.Error()))
		return 1
	}
	if !found {
		fmt.Println(infoStyle.Render("No release found for " + cfg.Update.Repo))
		return 1
	}
	if latest.LessOrEqual(version) {
		fmt.Println(successStyle.Render("blindmark " + version + " is up to date."))
		return 0
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		fmt.Println(errorStyle.Render("Could not locate executable: " + err.Error()))
		return 1
	}

	_ = spinner.New().
		Title(fmt.Sprintf("Updating to %s...", latest.Version())).
		Action(func() {
			err = selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe)
		}).
		Run()

	if err != nil {
		fmt.Println(errorStyle.Render("Update failed: " + err.Error()))
		return 1
	}

	fmt.Println(successStyle.Render("Updated to " + latest.Version()))
	return 0
}
