package cmd

import (
	"fmt"

	"bepro/internal/markdown"
	"bepro/worker"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	digestOut  string
	digestShow bool
)

// digestCmd force-renders the daily digest for one user, ignoring the schedule.
var digestCmd = &cobra.Command{
	Use:   "digest <user>",
	Short: "Render a user's digest now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.resolveUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := a.cfg.Digest.OutputDir
		if digestOut != "" {
			out = digestOut
		}
		b := &worker.DigestBuilder{
			Profiles:  a.store,
			Feed:      a.feed,
			OutputDir: out,
			TopN:      a.cfg.Digest.TopN,
			Title:     a.cfg.Digest.Title,
			Preface:   a.cfg.Digest.Preface,
		}
		path, err := b.Build(cmd.Context(), u)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		if !digestShow {
			return nil
		}

		doc, err := markdown.ParseFile(path)
		if err != nil {
			return err
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		rendered, err := r.Render(doc.Body)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVarP(&digestOut, "out", "o", "", "output directory (default digest.output_dir)")
	digestCmd.Flags().BoolVar(&digestShow, "show", false, "also print the rendered digest to the terminal")
	rootCmd.AddCommand(digestCmd)
}
