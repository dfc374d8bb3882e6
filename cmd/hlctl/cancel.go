package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/hlclient/pkg/exchange"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

var (
	cancelSymbol string
	cancelOid    int64
	cancelCloid  string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a resting order by oid or client order id",
	Example: `  hlctl cancel --symbol BTC --oid 12345
  hlctl cancel --symbol ETH --cloid 0x00000000000000000000000000000001`,
	RunE: runCancel,
}

func init() {
	cancelCmd.Flags().StringVar(&cancelSymbol, "symbol", "", "Asset symbol [required]")
	cancelCmd.Flags().Int64Var(&cancelOid, "oid", 0, "Venue order id")
	cancelCmd.Flags().StringVar(&cancelCloid, "cloid", "", "Client order id (0x + 32 hex chars)")

	cancelCmd.MarkFlagRequired("symbol")
	cancelCmd.MarkFlagsMutuallyExclusive("oid", "cloid")
}

func runCancel(cmd *cobra.Command, args []string) error {
	if cancelCloid != "" {
		cloid, err := wire.ParseCloid(cancelCloid)
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
			return ex.CancelByCloid(ctx, cancelSymbol, cloid)
		})
	}
	if cancelOid <= 0 {
		return errors.New("one of --oid or --cloid is required")
	}
	return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
		return ex.Cancel(ctx, cancelSymbol, cancelOid)
	})
}
