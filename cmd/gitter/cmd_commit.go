package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitterhq/gitter/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string
	var signKey string

	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: "Record the staged snapshot as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("commit message cannot be empty")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}

			if strings.TrimSpace(author) == "" {
				author = r.Identity()
			}

			var signer repo.CommitSigner
			if strings.TrimSpace(signKey) != "" {
				signer, _, err = newSSHCommitSigner(signKey)
				if err != nil {
					return err
				}
			}

			hash, err := r.CommitWithSigner(message, author, signer)
			if err != nil {
				return err
			}

			short := string(hash)
			if len(short) > 8 {
				short = short[:8]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", short, message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message (required)")
	cmd.Flags().StringVar(&author, "author", "", "override the configured commit identity")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "path to an SSH private key used to sign the commit")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}
