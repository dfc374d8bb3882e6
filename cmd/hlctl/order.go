package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/hlclient/pkg/exchange"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

var (
	orderSymbol   string
	orderSide     string
	orderSize     string
	orderPrice    string
	orderTif      string
	orderSlippage string
	orderReduce   bool
	orderCloid    bool
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place a limit or market order",
	Long: `Place a limit order, or a market order when --price is omitted. Market
orders are sent as IOC limits priced --slippage away from the current mid.`,
	Example: `  # Rest a bid for 1.5 BTC at 30000
  hlctl order --symbol BTC --side buy --size 1.5 --price 30000

  # Sell 0.1 ETH at market with 1% slippage
  hlctl order --symbol ETH --side sell --size 0.1 --slippage 0.01

  # Spot pairs use the venue name or BASE/QUOTE
  hlctl order --symbol PURR/USDC --side buy --size 100 --price 0.12 --tif Alo`,
	RunE: runOrder,
}

func init() {
	orderCmd.Flags().StringVar(&orderSymbol, "symbol", "", "Asset symbol, e.g. BTC or PURR/USDC [required]")
	orderCmd.Flags().StringVar(&orderSide, "side", "", "buy or sell [required]")
	orderCmd.Flags().StringVar(&orderSize, "size", "", "Order size in base units [required]")
	orderCmd.Flags().StringVar(&orderPrice, "price", "", "Limit price (omit for a market order)")
	orderCmd.Flags().StringVar(&orderTif, "tif", string(wire.TifGtc), "Time in force for limit orders: Gtc, Ioc or Alo")
	orderCmd.Flags().StringVar(&orderSlippage, "slippage", exchange.DefaultSlippage.String(), "Market order price tolerance as a fraction")
	orderCmd.Flags().BoolVar(&orderReduce, "reduce-only", false, "Only reduce an existing position")
	orderCmd.Flags().BoolVar(&orderCloid, "cloid", false, "Attach a random client order id")

	orderCmd.MarkFlagRequired("symbol")
	orderCmd.MarkFlagRequired("side")
	orderCmd.MarkFlagRequired("size")
}

func runOrder(cmd *cobra.Command, args []string) error {
	isBuy, err := parseSide(orderSide)
	if err != nil {
		return err
	}
	size, err := parseDecimal("size", orderSize)
	if err != nil {
		return err
	}
	var cloid *wire.Cloid
	if orderCloid {
		c := wire.NewCloid()
		cloid = &c
		fmt.Fprintf(cmd.ErrOrStderr(), "cloid %s\n", c)
	}

	if orderPrice == "" {
		slippage, err := parseDecimal("slippage", orderSlippage)
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
			return ex.MarketOpen(ctx, orderSymbol, isBuy, size, orderReduce, nil, slippage, cloid)
		})
	}

	px, err := parseDecimal("price", orderPrice)
	if err != nil {
		return err
	}
	o := wire.Order{
		Symbol:     orderSymbol,
		IsBuy:      isBuy,
		LimitPx:    px,
		Size:       size,
		ReduceOnly: orderReduce,
		OrderType:  wire.Limit(wire.Tif(orderTif)),
		Cloid:      cloid,
	}
	return withSession(func(ctx context.Context, ex *exchange.Exchange) (*transport.Result, error) {
		return ex.Order(ctx, o, nil)
	})
}

func parseSide(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "buy", "b", "long":
		return true, nil
	case "sell", "s", "short":
		return false, nil
	}
	return false, fmt.Errorf("--side must be 'buy' or 'sell', got: %s", s)
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
