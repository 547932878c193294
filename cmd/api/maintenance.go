package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail maintenance",
}

var auditRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Ensure the audit schema, backfill legacy rows and verify writes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		audit := service.NewAuditService(service.AuditDependencies{Store: rt.store, Tx: rt.tx, Logger: rt.logger})
		report, err := audit.SelfRepair(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Chat message maintenance",
}

var messagesCorrelateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Tag untagged chat messages with the ticket of their conversation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		chat := service.NewChatService(service.ChatDependencies{
			Store:      rt.store,
			Tx:         rt.tx,
			Dispatcher: events.NewInMemoryDispatcher(rt.logger),
			Logger:     rt.logger,
		})
		report, err := chat.BackfillTicketIDs(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

func init() {
	auditCmd.AddCommand(auditRepairCmd)
	messagesCmd.AddCommand(messagesCorrelateCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
