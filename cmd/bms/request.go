package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bms/internal/amqp"
)

func requestCmd() *cobra.Command {
	var requestedBy string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Ask a running bms-worker to sync now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			if requestedBy == "" {
				requestedBy, _ = os.Hostname()
			}
			msg := amqp.NewSyncRequestMessage("manual", requestedBy)
			if err := client.PublishSyncRequest(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync requested: %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestedBy, "by", "", "requester recorded on the message (default: hostname)")
	return cmd
}
