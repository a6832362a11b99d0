package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/coin-ingest/pkg/logging"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List stored objects under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := opts.cfg.Storage.Layer + "/"
			if len(args) == 1 {
				prefix = args[0]
			}

			store, err := openStore(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer closeStore(store, logging.NewLogger("store"))

			objects, err := store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, o := range objects {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download <key> [local-path]",
		Short: "Download a stored object; prints it when no local path is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			localPath := ""
			if len(args) == 2 {
				localPath = args[1]
			}

			store, err := openStore(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer closeStore(store, logging.NewLogger("store"))

			data, err := store.Download(cmd.Context(), args[0], localPath)
			if err != nil {
				return err
			}
			if localPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), localPath)
			return nil
		},
	}
}
