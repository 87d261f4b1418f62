package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ytget/nexus-downloader/internal/engine"
	"github.com/ytget/nexus-downloader/internal/model"
)

var (
	groupFilter string
	jsonOutput  bool
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog SOURCE",
		Short: "List the channels of an M3U catalog or an Xtream account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			eng, err := engine.New(engineConfig())
			if err != nil {
				return err
			}
			defer eng.Close()

			channels, err := eng.Catalog.ImportCatalog(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeChannelsJSON(cmd.OutOrStdout(), channels, groupFilter)
			}
			printChannels(cmd.OutOrStdout(), channels, groupFilter)
			return nil
		},
	}
	cmd.Flags().StringVarP(&groupFilter, "group", "g", "", "Only list channels of this group")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print channels as JSON")
	return cmd
}

func filterGroup(channels []model.ChannelEntry, group string) []model.ChannelEntry {
	if group == "" {
		return channels
	}
	out := make([]model.ChannelEntry, 0, len(channels))
	for _, ch := range channels {
		if strings.EqualFold(ch.Group, group) {
			out = append(out, ch)
		}
	}
	return out
}

func printChannels(w io.Writer, channels []model.ChannelEntry, group string) {
	for _, ch := range filterGroup(channels, group) {
		fmt.Fprintf(w, "%s %s\n    %s\n", groupStyle.Render("["+ch.Group+"]"), titleStyle.Render(ch.Name), statsStyle.Render(ch.URL))
	}
}

func writeChannelsJSON(w io.Writer, channels []model.ChannelEntry, group string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(filterGroup(channels, group))
}
