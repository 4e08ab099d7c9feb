package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"sectorscan/cmd"
	"sectorscan/internal/logger"
	l3_service "sectorscan/internal/service/l3"
	"sectorscan/internal/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sectorscan",
		Short:         "Scan a market sector and keep a paper-trade ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", util.ConfigPath(), "path to the yaml config")

	loadConfig := func() (*util.Config, error) {
		return util.LoadConfig(configPath)
	}

	root.AddCommand(
		newScanCmd(loadConfig),
		newUniverseCmd(loadConfig),
		newTradesCmd(loadConfig),
	)
	return root
}

func printJson(w io.Writer, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = w.Write(pretty.Pretty(bytes))
	return err
}

func withLogger(c *cobra.Command) context.Context {
	return logger.WithContext(c.Context(), logger.New())
}

func newScanCmd(loadConfig func() (*util.Config, error)) *cobra.Command {
	var sector string
	c := &cobra.Command{
		Use:   "scan",
		Short: "Research every instrument in a sector and propose an allocation",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := withLogger(c)
			handler, err := cmd.NewApiHandler(ctx, cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			result, err := handler.ScanService.Scan(ctx, sector)
			if err != nil {
				return err
			}
			return printJson(c.OutOrStdout(), result)
		},
	}
	c.Flags().StringVar(&sector, "sector", "", "sector tag, e.g. AUTO or AI")
	_ = c.MarkFlagRequired("sector")
	return c
}

func newUniverseCmd(loadConfig func() (*util.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "universe SECTOR",
		Short: "List the instruments a sector resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := withLogger(c)
			handler, err := cmd.NewApiHandler(ctx, cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			return printJson(c.OutOrStdout(), handler.UniverseResolver.Resolve(ctx, args[0]))
		},
	}
}

func newTradesCmd(loadConfig func() (*util.Config, error)) *cobra.Command {
	trades := &cobra.Command{
		Use:   "trades",
		Short: "Inspect and update the paper-trade ledger",
	}

	withLedger := func(c *cobra.Command, fn func(ctx context.Context, ledger l3_service.PaperTradeLedger) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := withLogger(c)
		ledger, closeLedger, err := cmd.NewLedgerOnly(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeLedger()
		return fn(ctx, ledger)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print active and closed trades",
		RunE: func(c *cobra.Command, args []string) error {
			return withLedger(c, func(ctx context.Context, ledger l3_service.PaperTradeLedger) error {
				state, err := ledger.LoadTrades(ctx)
				if err != nil {
					return err
				}
				return printJson(c.OutOrStdout(), state)
			})
		},
	}

	input := l3_service.BookTradeInput{}
	book := &cobra.Command{
		Use:   "book",
		Short: "Open a paper position",
		RunE: func(c *cobra.Command, args []string) error {
			return withLedger(c, func(ctx context.Context, ledger l3_service.PaperTradeLedger) error {
				trade, err := ledger.BookTrade(ctx, input)
				if err != nil {
					return err
				}
				return printJson(c.OutOrStdout(), trade)
			})
		},
	}
	book.Flags().StringVar(&input.Instrument, "ticker", "", "instrument, e.g. INFY.NS")
	book.Flags().Float64Var(&input.Price, "price", 0, "entry price")
	book.Flags().Int64Var(&input.Quantity, "quantity", 0, "share count")
	book.Flags().Float64Var(&input.StopLoss, "stop", 0, "stop loss")
	book.Flags().Float64Var(&input.Target, "target", 0, "target price")
	book.Flags().StringVar(&input.Thesis, "thesis", "", "why the trade was taken")
	_ = book.MarkFlagRequired("ticker")
	_ = book.MarkFlagRequired("price")
	_ = book.MarkFlagRequired("quantity")

	var exitPrice float64
	closeCmd := &cobra.Command{
		Use:   "close ID",
		Short: "Close an active paper position",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			tradeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid trade id %q", args[0])
			}
			return withLedger(c, func(ctx context.Context, ledger l3_service.PaperTradeLedger) error {
				trade, err := ledger.CloseTrade(ctx, tradeID, exitPrice)
				if err != nil {
					return err
				}
				return printJson(c.OutOrStdout(), trade)
			})
		},
	}
	closeCmd.Flags().Float64Var(&exitPrice, "price", 0, "exit price")
	_ = closeCmd.MarkFlagRequired("price")

	trades.AddCommand(list, book, closeCmd)
	return trades
}
