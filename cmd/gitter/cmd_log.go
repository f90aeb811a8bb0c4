package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitterhq/gitter/pkg/object"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			start := "HEAD"
			if len(args) > 0 {
				start = args[0]
			}

			startHash, err := r.ResolveRevision(start)
			if err != nil {
				// A fresh repository has no commits: empty log, not an error.
				if start == "HEAD" {
					fmt.Fprintln(out, "no commits yet")
					return nil
				}
				return err
			}

			entries, err := r.Log(startHash, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}

			headHash, _ := r.ResolveRef("HEAD")
			branchName := ""
			if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/heads/") {
				branchName = strings.TrimPrefix(head, "refs/heads/")
			}

			for _, entry := range entries {
				decoration := buildDecoration(entry.Hash, headHash, branchName)
				if oneline {
					short := string(entry.Hash)
					if len(short) > 8 {
						short = short[:8]
					}
					if decoration != "" {
						fmt.Fprintf(out, "%s %s %s\n", short, decoration, entry.Commit.Message)
					} else {
						fmt.Fprintf(out, "%s %s\n", short, entry.Commit.Message)
					}
					continue
				}

				if decoration != "" {
					fmt.Fprintf(out, "commit %s %s\n", entry.Hash, decoration)
				} else {
					fmt.Fprintf(out, "commit %s\n", entry.Hash)
				}
				fmt.Fprintf(out, "Author: %s\n", entry.Commit.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(entry.Commit.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", entry.Commit.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of commits to show (0 = all)")

	return cmd
}

// buildDecoration returns "(HEAD -> main)" when the commit is the current
// HEAD, or "" otherwise.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}
