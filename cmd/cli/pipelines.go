package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redgrape/thegrid/pkg/client/thegrid"
)

func makeClient(cmd *cobra.Command) *thegrid.Client {
	endpoint := unwrap(cmd.Flags().GetString("endpoint"))
	if endpoint == "" {
		endpoint = os.Getenv("GRID_ENDPOINT")
	}
	token := unwrap(cmd.Flags().GetString("token"))
	if token == "" {
		token = os.Getenv("GRID_API_TOKEN")
	}
	if endpoint == "" {
		log.Warn("No endpoint configured, pass --endpoint or set GRID_ENDPOINT")
	}
	return unwrap(thegrid.NewClient(endpoint, token))
}

func addClientFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String("endpoint", "", "Service endpoint (defaults to $GRID_ENDPOINT)")
	cmd.Flags().String("token", "", "API token (defaults to $GRID_API_TOKEN)")
	return cmd
}

func makePipelinesCommand() *cobra.Command {
	return addClientFlags(&cobra.Command{
		Use:   "pipelines",
		Short: "List pipelines",
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			pipelines := unwrap(client.ListPipelines())
			for _, p := range pipelines {
				fmt.Printf("%s  %-10s  %s/%s  %s\n", p.ID, p.Status, p.Type, p.Source, p.Name)
			}
		},
	})
}

func makeChangelogCommand() *cobra.Command {
	return addClientFlags(&cobra.Command{
		Use:   "changelog",
		Short: "List published changelog entries",
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			entries := unwrap(client.ChangelogEntries())
			for _, e := range entries {
				fmt.Printf("%s/%s#%d  %s\n", e.RepoOwner, e.RepoName, e.PRNumber, e.Title)
			}
		},
	})
}

func makePipelineCommand() *cobra.Command {
	return addClientFlags(&cobra.Command{
		Use:   "pipeline <id>",
		Short: "Show one pipeline with its steps",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			res := unwrap(client.GetPipeline(args[0]))
			p := res.Pipeline
			fmt.Printf("%s (%s/%s): %s\n", p.Name, p.Type, p.Source, p.Status)
			for _, step := range res.Steps {
				duration := step.Duration
				if duration == "" {
					duration = "-"
				}
				fmt.Printf("  %-30s %-16s %s\n", step.Name, step.Status, duration)
			}
		},
	})
}
