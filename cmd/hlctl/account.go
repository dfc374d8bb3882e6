package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/hlclient/pkg/exchange"
	"github.com/uhyunpark/hlclient/pkg/transport"
)

var (
	leverageSymbol string
	leverageValue  int
	leverageCross  bool
)

var leverageCmd = &cobra.Command{
	Use:     "leverage",
	Short:   "Set cross or isolated leverage for an asset",
	Example: `  hlctl leverage --symbol ETH --leverage 10 --cross=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if leverageValue <= 0 {
			return fmt.Errorf("--leverage must be positive, got %d", leverageValue)
		}
		return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
			return ex.UpdateLeverage(ctx, leverageSymbol, leverageValue, leverageCross)
		})
	},
}

var (
	transferTo     string
	transferAmount string
	transferToken  string
	transferClass  string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move funds to another address or between spot and perp",
	Long: `Without --class, sends USD (or the spot --token) to --to. With
--class to-perp or to-spot, moves USD between the account's own balances; a
configured HL_VAULT_ADDRESS moves the vault's balances instead.`,
	Example: `  hlctl transfer --to 0x5e9ee1089755c3435139848e47e6635505d5a13a --amount 25
  hlctl transfer --to 0x5e9e... --amount 100 --token PURR:0xc1fb593aeffbeb02f85e0308e9956a90
  hlctl transfer --class to-spot --amount 10`,
	RunE: runTransfer,
}

func init() {
	leverageCmd.Flags().StringVar(&leverageSymbol, "symbol", "", "Asset symbol [required]")
	leverageCmd.Flags().IntVar(&leverageValue, "leverage", 0, "Leverage multiple [required]")
	leverageCmd.Flags().BoolVar(&leverageCross, "cross", true, "Cross margin (false for isolated)")
	leverageCmd.MarkFlagRequired("symbol")
	leverageCmd.MarkFlagRequired("leverage")

	transferCmd.Flags().StringVar(&transferTo, "to", "", "Destination address")
	transferCmd.Flags().StringVar(&transferAmount, "amount", "", "Amount [required]")
	transferCmd.Flags().StringVar(&transferToken, "token", "", "Spot token as NAME:0xTOKENID (default: USD)")
	transferCmd.Flags().StringVar(&transferClass, "class", "", "to-perp or to-spot for an internal balance move")
	transferCmd.MarkFlagRequired("amount")
	transferCmd.MarkFlagsMutuallyExclusive("class", "to")
	transferCmd.MarkFlagsMutuallyExclusive("class", "token")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	amount, err := parseDecimal("amount", transferAmount)
	if err != nil {
		return err
	}

	if transferClass != "" {
		var toPerp bool
		switch transferClass {
		case "to-perp":
			toPerp = true
		case "to-spot":
		default:
			return fmt.Errorf("--class must be 'to-perp' or 'to-spot', got: %s", transferClass)
		}
		return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
			return ex.UsdClassTransfer(ctx, amount, toPerp)
		})
	}

	if transferTo == "" {
		return fmt.Errorf("--to is required unless --class is set")
	}
	return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
		if transferToken != "" {
			return ex.SpotTransfer(ctx, transferTo, transferToken, amount)
		}
		return ex.UsdTransfer(ctx, transferTo, amount)
	})
}
