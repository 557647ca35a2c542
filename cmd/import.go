package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"bepro/internal/hackernews"
	"bepro/internal/markdown"
	"bepro/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	importProfiles string
	importHN       int
	importHNList   string
)

// profilesFile is the YAML layout accepted by --profiles.
type profilesFile struct {
	Profiles []struct {
		ID       string   `yaml:"id"`
		Username string   `yaml:"username"`
		Tags     []string `yaml:"tags"`
		Follows  []string `yaml:"follows"`
	} `yaml:"profiles"`
}

// importCmd loads markdown posts (and optionally profiles) into sqlite.
var importCmd = &cobra.Command{
	Use:   "import [dir|file]...",
	Short: "Import markdown posts and YAML profiles into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && importProfiles == "" && importHN <= 0 {
			return fmt.Errorf("nothing to import: pass markdown paths, --profiles or --hn")
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if importProfiles != "" {
			n, err := importProfileFile(cmd, a, importProfiles)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "imported %d profiles\n", n)
		}
		if importHN > 0 {
			posts, err := hackernews.NewClient("").Stories(ctx, importHNList, importHN)
			if err != nil {
				return err
			}
			for _, p := range posts {
				if err := a.store.UpsertPost(ctx, p); err != nil {
					return fmt.Errorf("upsert %s: %w", p.ID, err)
				}
			}
			fmt.Fprintf(out, "imported %d posts from hacker news\n", len(posts))
		}
		if len(args) == 0 {
			return nil
		}

		files, err := markdown.CollectFiles(args)
		if err != nil {
			return err
		}
		imported := 0
		for _, f := range files {
			p, err := markdown.PostFromFile(f)
			if err != nil {
				slog.Warn("import: skip file", "path", f, "error", err)
				continue
			}
			if err := a.store.UpsertPost(ctx, p); err != nil {
				return fmt.Errorf("upsert %s: %w", f, err)
			}
			slog.Debug("import: post", "id", p.ID, "path", f)
			imported++
		}
		fmt.Fprintf(out, "imported %d of %d posts\n", imported, len(files))
		return nil
	},
}

func importProfileFile(cmd *cobra.Command, a *app, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pf profilesFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	ctx := cmd.Context()
	for _, p := range pf.Profiles {
		if p.ID == "" {
			return 0, fmt.Errorf("profile %q has no id", p.Username)
		}
		if err := a.store.UpsertProfile(ctx, model.UserProfile{ID: p.ID, Username: p.Username, Tags: p.Tags}); err != nil {
			return 0, err
		}
	}
	// follows reference ids that may appear later in the file
	for _, p := range pf.Profiles {
		for _, f := range p.Follows {
			if err := a.store.Follow(ctx, p.ID, f); err != nil {
				slog.Warn("import: follow failed", "follower", p.ID, "followee", f, "error", err)
			}
		}
	}
	return len(pf.Profiles), nil
}

func init() {
	importCmd.Flags().StringVar(&importProfiles, "profiles", "", "YAML file with a top-level profiles list")
	importCmd.Flags().IntVar(&importHN, "hn", 0, "also seed this many Hacker News stories")
	importCmd.Flags().StringVar(&importHNList, "hn-list", "topstories", "Hacker News list: topstories|newstories|beststories|askstories|showstories")
	rootCmd.AddCommand(importCmd)
}
