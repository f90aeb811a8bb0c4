package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gitterhq/gitter/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			branch := "main"
			noCommits := true
			head, err := r.Head()
			if err == nil {
				if strings.HasPrefix(head, "refs/heads/") {
					branch = strings.TrimPrefix(head, "refs/heads/")
				}
				if _, resolveErr := r.ResolveRef("HEAD"); resolveErr == nil {
					noCommits = false
				}
			}

			if noCommits {
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			var staged, unstaged, untracked []string
			for _, e := range entries {
				switch e.Category {
				case repo.Added:
					staged = append(staged, "  + "+e.Path)
				case repo.ModifiedStaged:
					staged = append(staged, "  ~ "+e.Path)
				case repo.DeletedStaged:
					staged = append(staged, "  - "+e.Path)
				case repo.ModifiedUnstaged:
					unstaged = append(unstaged, "  ~ "+e.Path)
				case repo.DeletedUnstaged:
					unstaged = append(unstaged, "  - "+e.Path)
				case repo.Untracked:
					untracked = append(untracked, "    "+e.Path)
				}
			}

			if len(staged) == 0 && len(unstaged) == 0 && len(untracked) == 0 {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
				return nil
			}

			if len(staged) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "changes to be committed:")
				green := color.New(color.FgGreen)
				for _, line := range staged {
					green.Fprintln(out, line)
				}
			}
			if len(unstaged) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "changes not staged for commit:")
				red := color.New(color.FgRed)
				for _, line := range unstaged {
					red.Fprintln(out, line)
				}
			}
			if len(untracked) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "untracked files:")
				red := color.New(color.FgRed)
				for _, line := range untracked {
					red.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}
