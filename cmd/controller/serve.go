package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// #region serve-producer
func serveProducerCmd(opts *appOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve-producer",
		Short: "Serve the canned reference producer over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := newLogger(opts.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}

			srv := grpc.NewServer()
			producer.RegisterServer(srv, producer.Canned{}, logger)

			go func() {
				<-ctx.Done()
				logger.Info("shutting down producer")
				srv.GracefulStop()
			}()

			logger.Info("producer listening", zap.String("addr", lis.Addr().String()))
			if err := srv.Serve(lis); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", envOr("PRODUCER_ADDR", "localhost:50061"), "listen address")
	return cmd
}

// #endregion serve-producer
