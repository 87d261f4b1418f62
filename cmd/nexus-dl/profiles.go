package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ytget/nexus-downloader/internal/identity"
)

var (
	profileName      string
	profileUserAgent string
	profileLanguages []string
	profileHeaders   []string
	profilePortMin   int
	profilePortMax   int
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage identity profiles used for request rotation",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rotator := identity.NewRotator(identity.NewFileStore(profilesPath))
			for _, p := range rotator.Profiles() {
				origin := statsStyle.Render("built-in")
				if p.IsCustom {
					origin = doneStyle.Render("custom")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n    %s\n", titleStyle.Render(p.Name), origin,
					statsStyle.Render(p.Headers[identity.HeaderUserAgent]))
			}
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a custom profile to the profiles file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profileFromFlags()
			if err != nil {
				return err
			}
			rotator := identity.NewRotator(identity.NewFileStore(profilesPath))
			if err := rotator.AddCustomProfile(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", doneStyle.Render("added"), p.Name)
			return nil
		},
	}
	f := addCmd.Flags()
	f.StringVar(&profileName, "name", "", "Profile name")
	f.StringVar(&profileUserAgent, "user-agent", "", "User-Agent header value")
	f.StringSliceVar(&profileLanguages, "lang", nil, "Accept-Language candidates, e.g. en-US,de-DE")
	f.StringArrayVarP(&profileHeaders, "header", "H", nil, "Extra header as Name=Value (repeatable)")
	f.IntVar(&profilePortMin, "port-min", 1024, "Lowest port hint")
	f.IntVar(&profilePortMax, "port-max", 65535, "Highest port hint")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("user-agent")

	cmd.AddCommand(listCmd, addCmd)
	return cmd
}

// profileFromFlags builds a profile; validation is left to the rotator
func profileFromFlags() (identity.Profile, error) {
	headers := map[string]string{identity.HeaderUserAgent: profileUserAgent}
	for _, h := range profileHeaders {
		name, value, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return identity.Profile{}, fmt.Errorf("invalid header %q, want Name=Value", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	langs := append([]string(nil), profileLanguages...)
	return identity.Profile{
		Name:                     profileName,
		Headers:                  headers,
		AcceptLanguageCandidates: langs,
		PortRange:                identity.PortRange{Min: profilePortMin, Max: profilePortMax},
	}, nil
}
