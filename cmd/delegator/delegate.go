package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/armatrix/agent-delegation-go/subagent"
)

var (
	delegateTarget      string
	delegateTools       []string
	delegateTags        []string
	delegateTimeout     time.Duration
	delegateCollaborate bool
	delegateDirs        []string
)

var errDelegationFailed = errors.New("delegation failed")

var delegateCmd = &cobra.Command{
	Use:   "delegate <task>",
	Short: "Delegate one task and print the outcome",
	Long: `Loads the worker catalog into a fresh engine, delegates the task to the
named worker or the best candidate, and prints the response.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, s, err := loadSettings()
		if err != nil {
			return err
		}
		e, err := newEngine(paths, newLogger(cmd.ErrOrStderr(), s.Log))
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := registerCatalog(ctx, e, catalogDirs(delegateDirs, s)); err != nil {
			return err
		}

		resp := e.Delegate(ctx, subagent.Request{
			Target:        delegateTarget,
			Task:          strings.Join(args, " "),
			Timeout:       delegateTimeout,
			RequiredTools: delegateTools,
			Tags:          delegateTags,
			Collaborate:   delegateCollaborate,
		})
		printResponse(cmd.OutOrStdout(), resp)
		if !resp.Success {
			return errDelegationFailed
		}
		return nil
	},
}

func init() {
	delegateCmd.Flags().StringVarP(&delegateTarget, "target", "t", "", "worker ID (default: best candidate)")
	delegateCmd.Flags().StringSliceVar(&delegateTools, "tool", nil, "required tool, repeatable")
	delegateCmd.Flags().StringSliceVar(&delegateTags, "tag", nil, "capability tag, repeatable")
	delegateCmd.Flags().DurationVar(&delegateTimeout, "timeout", 0, "dispatch timeout (default: engine setting)")
	delegateCmd.Flags().BoolVar(&delegateCollaborate, "collaborate", false, "allow the worker to consult others")
	delegateCmd.Flags().StringSliceVar(&delegateDirs, "catalog", nil, "catalog directories (default: catalog_dirs setting)")
}

func printResponse(w io.Writer, resp *subagent.Response) {
	m := resp.Metadata
	var sb strings.Builder
	if resp.Success {
		sb.WriteString(successStyle.Render("completed"))
	} else {
		sb.WriteString(errorStyle.Render("failed"))
	}
	if m.WorkerID != "" {
		fmt.Fprintf(&sb, " by %s (%s)", m.WorkerID, m.Role)
	}
	if resp.TaskID != "" {
		sb.WriteString("\n" + mutedStyle.Render("task "+resp.TaskID))
	}
	if resp.Result != nil {
		fmt.Fprintf(&sb, "\n\n%v", resp.Result)
	}
	for _, e := range resp.Errors {
		sb.WriteString("\n" + errorStyle.Render("error: ") + e)
	}
	for _, warn := range resp.Warnings {
		sb.WriteString("\n" + warnStyle.Render("warning: ") + warn)
	}
	if resp.Success {
		fmt.Fprintf(&sb, "\n\n%s", mutedStyle.Render(fmt.Sprintf(
			"duration %s  confidence %.1f  tools %s  cost $%s",
			m.Duration.Round(time.Millisecond), m.Confidence, strings.Join(m.ToolsUsed, ","), m.Cost.StringFixed(4))))
	}
	fmt.Fprintln(w, boxStyle.Render(sb.String()))
}
