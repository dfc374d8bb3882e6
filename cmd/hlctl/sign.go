package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/hlclient/pkg/crypto"
	"github.com/uhyunpark/hlclient/pkg/transport"
	"github.com/uhyunpark/hlclient/pkg/util"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

var (
	signAsset   int
	signSide    string
	signSize    string
	signPrice   string
	signTif     string
	signNonce   int64
	signReduce  bool
	signExpires int64
)

var signOrderCmd = &cobra.Command{
	Use:   "sign-order",
	Short: "Build and sign an order envelope without sending it",
	Long: `sign-order builds a limit order for a numeric asset index, signs it with
HL_PRIVATE_KEY (or a freshly generated key when unset) and prints the request
body the exchange endpoint expects. Nothing is sent.`,
	Example: `  hlctl sign-order --asset 0 --side buy --size 1.5 --price 30000
  hlctl sign-order --asset 10000 --side sell --size 100 --price 0.2 --tif Alo`,
	RunE: runSignOrder,
}

func init() {
	signOrderCmd.Flags().IntVar(&signAsset, "asset", 0, "Asset index (perp position in universe, or 10000+pair for spot)")
	signOrderCmd.Flags().StringVar(&signSide, "side", "", "buy or sell [required]")
	signOrderCmd.Flags().StringVar(&signSize, "size", "", "Order size [required]")
	signOrderCmd.Flags().StringVar(&signPrice, "price", "", "Limit price [required]")
	signOrderCmd.Flags().StringVar(&signTif, "tif", string(wire.TifGtc), "Time in force: Gtc, Ioc or Alo")
	signOrderCmd.Flags().BoolVar(&signReduce, "reduce-only", false, "Only reduce an existing position")
	signOrderCmd.Flags().Int64Var(&signNonce, "nonce", 0, "Nonce in unix ms (default: now)")
	signOrderCmd.Flags().Int64Var(&signExpires, "expires-after", 0, "Reject the action after this unix ms time")

	signOrderCmd.MarkFlagRequired("side")
	signOrderCmd.MarkFlagRequired("size")
	signOrderCmd.MarkFlagRequired("price")
}

func runSignOrder(cmd *cobra.Command, args []string) error {
	key, err := loadKey(cfg)
	if err != nil {
		key, err = crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "HL_PRIVATE_KEY not set; generated %s\n", key.Address().Hex())
	}

	isBuy, err := parseSide(signSide)
	if err != nil {
		return err
	}
	size, err := parseDecimal("size", signSize)
	if err != nil {
		return err
	}
	px, err := parseDecimal("price", signPrice)
	if err != nil {
		return err
	}

	enc := wire.NewEncoder(cfg.Venue.Network)
	ow, err := enc.EncodeOrder(wire.Order{
		Symbol:     fmt.Sprintf("#%d", signAsset),
		IsBuy:      isBuy,
		LimitPx:    px,
		Size:       size,
		ReduceOnly: signReduce,
		OrderType:  wire.Limit(wire.Tif(signTif)),
	}, signAsset)
	if err != nil {
		return err
	}
	action, err := enc.EncodeOrderAction([]wire.OrderWire{ow}, wire.GroupingNA, nil)
	if err != nil {
		return err
	}

	p := crypto.L1Params{Nonce: signNonce}
	if p.Nonce == 0 {
		p.Nonce = util.RealClock{}.Now().UnixMilli()
	}
	if signExpires != 0 {
		p.ExpiresAfter = &signExpires
	}
	env := &transport.Envelope{Action: action, Nonce: p.Nonce, ExpiresAfter: p.ExpiresAfter}
	if cfg.Account.Vault != "" {
		if !common.IsHexAddress(cfg.Account.Vault) {
			return fmt.Errorf("HL_VAULT_ADDRESS %q is not an address", cfg.Account.Vault)
		}
		vault := common.HexToAddress(cfg.Account.Vault)
		p.Vault = &vault
		lower := strings.ToLower(vault.Hex())
		env.VaultAddress = &lower
	}

	signer := crypto.NewActionSigner(cfg.Venue.Network)
	env.Signature, err = signer.SignL1Action(key, action, p)
	if err != nil {
		return err
	}

	recovered, err := signer.RecoverL1Signer(action, p, env.Signature)
	if err != nil {
		return err
	}
	if recovered != key.Address() {
		return fmt.Errorf("signature recovers %s, want %s", recovered.Hex(), key.Address().Hex())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "signed for %s by %s\n", cfg.Venue.Network, key.Address().Hex())
	return printJSON(env)
}
