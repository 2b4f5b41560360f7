package main

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "cli"
	}
	return u.Username
}

func makeApprovalsCommand() *cobra.Command {
	return addClientFlags(&cobra.Command{
		Use:   "approvals",
		Short: "List pending approvals",
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			approvals := unwrap(client.PendingApprovals())
			for _, a := range approvals {
				fmt.Printf("%s  %-8s  %-12s  %s\n", a.ID, a.Risk, a.Origin, a.ApprovalType)
			}
		},
	})
}

func makeApprovalCommand() *cobra.Command {
	return addClientFlags(&cobra.Command{
		Use:   "approval <approval id>",
		Short: "Show a single approval",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			a := unwrap(client.GetApproval(args[0]))
			fmt.Printf("%s  %-8s  %-8s  %-12s  %s\n", a.ID, a.Status, a.Risk, a.Origin, a.ApprovalType)
			if !a.Resolved() {
				fmt.Println("Awaiting decision")
			} else if a.Reason != nil {
				fmt.Println("Reason:", *a.Reason)
			}
		},
	})
}

func makeApproveCommand() *cobra.Command {
	return addClientFlags(&cobra.Command{
		Use:   "approve <approval id>",
		Short: "Grant an approval and resume its pipeline",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			pipelineID := unwrap(client.Approve(args[0], currentUserName()))
			fmt.Printf("Approved; pipeline %s resumed\n", pipelineID)
		},
	})
}

func makeRejectCommand() *cobra.Command {
	cmd := addClientFlags(&cobra.Command{
		Use:   "reject <approval id>",
		Short: "Reject an approval and cancel its pipeline",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := makeClient(cmd)
			reason := unwrap(cmd.Flags().GetString("reason"))
			pipelineID := unwrap(client.Reject(args[0], currentUserName(), reason))
			fmt.Printf("Rejected; pipeline %s cancelled\n", pipelineID)
		},
	})
	cmd.Flags().String("reason", "", "Why the change was rejected")
	return cmd
}
