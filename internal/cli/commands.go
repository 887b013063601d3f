package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/renderer"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/will"
)

type initCmd struct {
	app    *App
	wallet string
	force  bool
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "creates an empty will draft for a wallet" }
func (*initCmd) Usage() string {
	return `willctl init -wallet <address> [-force]

  Creates the draft file with no beneficiaries and no asset data.
  Run refresh afterwards to load the wallet's balances and prices.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.wallet, "wallet", "", "Owner wallet address.")
	f.BoolVar(&c.force, "force", false, "Overwrite an existing draft file.")
}

func (c *initCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.wallet == "" {
		fmt.Fprintln(c.app.Err, "Error: -wallet is required")
		return subcommands.ExitUsageError
	}
	if _, err := os.Stat(c.app.DraftPath); err == nil && !c.force {
		fmt.Fprintf(c.app.Err, "Error: draft file %q already exists, use -force to replace it\n", c.app.DraftPath)
		return subcommands.ExitFailure
	}

	assets := &fileAssets{}
	service := c.app.newService(assets)
	state, err := service.CreateDraft(ctx, c.wallet)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeDraftFile(c.app.DraftPath, newDraftFile(state, assets.snapshot)); err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.app.Out, "Created draft %s for %s in %s\n", state.ID, state.OwnerWallet, c.app.DraftPath)
	return subcommands.ExitSuccess
}

type refreshCmd struct {
	app *App
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetches the wallet's balances and live prices" }
func (*refreshCmd) Usage() string {
	return `willctl refresh

  Fetches the owner wallet's balances and USD prices and stores them in the draft file.
  Allocation amounts and values are recomputed from the stored percentages.
  When balances cannot be fetched the previous snapshot is kept.
`
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {}

func (c *refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	assetRegistry, release, err := c.app.newRegistry(ctx)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer release()

	return c.app.edit(ctx, func(s *session) error {
		snapshot, err := assetRegistry.Refresh(ctx, s.ownerWallet)
		if err != nil {
			return fmt.Errorf("%w; keeping the previous snapshot", err)
		}
		s.assets.snapshot = snapshot
		s.service.OnSnapshot(s.ownerWallet, snapshot)

		for _, a := range snapshot.Assets {
			fmt.Fprintf(c.app.Out, "%-8s %16s %16s\n", a.Symbol, renderer.Amount(a.Balance), renderer.USD(a.USDValue))
		}
		fmt.Fprintf(c.app.Out, "Total %s\n", renderer.USD(snapshot.TotalUSD()))
		if snapshot.Degraded {
			fmt.Fprintln(c.app.Err, "Warning: live prices are unavailable, values use cached or zero prices")
		}
		return nil
	})
}

type addBeneficiaryCmd struct {
	app      *App
	id       string
	name     string
	relation string
	wallet   string
}

func (*addBeneficiaryCmd) Name() string     { return "add-beneficiary" }
func (*addBeneficiaryCmd) Synopsis() string { return "adds a beneficiary to the draft" }
func (*addBeneficiaryCmd) Usage() string {
	return `willctl add-beneficiary -name <display name> [-id <id>] [-relation <relation>] [-wallet <address>]

  The first beneficiary receives a 100% share, later ones 0%.
`
}

func (c *addBeneficiaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Beneficiary ID. Generated when empty.")
	f.StringVar(&c.name, "name", "", "Display name.")
	f.StringVar(&c.relation, "relation", "", "Relation to the owner.")
	f.StringVar(&c.wallet, "wallet", "", "Beneficiary wallet address.")
}

func (c *addBeneficiaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.edit(ctx, func(s *session) error {
		added, err := s.service.AddBeneficiary(ctx, s.id, domain.Beneficiary{
			ID:            c.id,
			DisplayName:   c.name,
			Relation:      c.relation,
			WalletAddress: c.wallet,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Added beneficiary %s (%s)\n", added.ID, added.DisplayName)
		return nil
	})
}

type removeBeneficiaryCmd struct {
	app *App
	id  string
}

func (*removeBeneficiaryCmd) Name() string { return "remove-beneficiary" }
func (*removeBeneficiaryCmd) Synopsis() string {
	return "removes a beneficiary and redistributes its share"
}
func (*removeBeneficiaryCmd) Usage() string {
	return `willctl remove-beneficiary -id <id>

  Deletes the beneficiary's allocations and spreads its share over the others.
`
}

func (c *removeBeneficiaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Beneficiary ID.")
}

func (c *removeBeneficiaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.edit(ctx, func(s *session) error {
		if err := s.service.RemoveBeneficiary(ctx, s.id, c.id); err != nil {
			return err
		}
		fmt.Fprintf(c.app.Out, "Removed beneficiary %s\n", c.id)
		return nil
	})
}

type setShareCmd struct {
	app         *App
	beneficiary string
	value       string
}

func (*setShareCmd) Name() string     { return "set-share" }
func (*setShareCmd) Synopsis() string { return "sets a beneficiary's share of the estate" }
func (*setShareCmd) Usage() string {
	return `willctl set-share -b <id> -v <percentage>

  Other shares are not adjusted; review warns when shares do not add up to 100%.
`
}

func (c *setShareCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.beneficiary, "b", "", "Beneficiary ID.")
	f.StringVar(&c.value, "v", "", "Share in percent.")
}

func (c *setShareCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.edit(ctx, func(s *session) error {
		result, err := s.service.SetShare(ctx, s.id, c.beneficiary, c.value)
		if err != nil {
			return err
		}
		if result.Ignored {
			fmt.Fprintf(c.app.Err, "Warning: %q is not a number, share left unchanged\n", c.value)
		}
		fmt.Fprintf(c.app.Out, "%s: %s (total %s)\n", c.beneficiary,
			renderer.Percent(result.Share.Allocation), renderer.Percent(result.Total))
		return nil
	})
}

type resetSharesCmd struct {
	app *App
}

func (*resetSharesCmd) Name() string     { return "reset-shares" }
func (*resetSharesCmd) Synopsis() string { return "splits the estate equally between beneficiaries" }
func (*resetSharesCmd) Usage() string {
	return `willctl reset-shares
`
}

func (c *resetSharesCmd) SetFlags(f *flag.FlagSet) {}

func (c *resetSharesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.edit(ctx, func(s *session) error {
		shares, err := s.service.ResetShares(ctx, s.id)
		if err != nil {
			return err
		}
		for _, share := range shares {
			fmt.Fprintf(c.app.Out, "%s: %s\n", share.BeneficiaryID, renderer.Percent(share.Allocation))
		}
		return nil
	})
}

type setAllocationCmd struct {
	app         *App
	asset       string
	beneficiary string
	value       string
	unit        string
}

func (*setAllocationCmd) Name() string     { return "set-allocation" }
func (*setAllocationCmd) Synopsis() string { return "sets a beneficiary's claim on one asset" }
func (*setAllocationCmd) Usage() string {
	return `willctl set-allocation -a <symbol> -b <id> -v <value> [-u PERCENT|AMOUNT|USD]

  The value is a percentage of the asset by default. AMOUNT is in native units
  and USD in dollars at the current price; both are stored as a percentage.
`
}

func (c *setAllocationCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "a", "", "Asset symbol.")
	f.StringVar(&c.beneficiary, "b", "", "Beneficiary ID.")
	f.StringVar(&c.value, "v", "", "Value to allocate.")
	f.StringVar(&c.unit, "u", "PERCENT", "Unit of the value: PERCENT, AMOUNT or USD.")
}

func (c *setAllocationCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	unit, err := domain.ParseAllocationUnit(c.unit)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	return c.app.edit(ctx, func(s *session) error {
		result, err := s.service.SetAssetAllocation(ctx, will.SetAssetAllocationInput{
			DraftID:       s.id,
			AssetSymbol:   strings.ToUpper(c.asset),
			BeneficiaryID: c.beneficiary,
			Value:         c.value,
			Unit:          unit,
		})
		if err != nil {
			return err
		}
		if result.Ignored {
			fmt.Fprintf(c.app.Err, "Warning: %q is not a number, allocation left unchanged\n", c.value)
		}
		if result.Clamped {
			fmt.Fprintln(c.app.Err, "Warning: lowered to the asset's remaining headroom")
		}
		r := result.Record
		fmt.Fprintf(c.app.Out, "%s %s: %s = %s (%s); asset total %s\n", r.BeneficiaryID, r.AssetSymbol,
			renderer.Percent(r.Percentage), renderer.Amount(r.Amount), renderer.USD(r.USDValue),
			renderer.Percent(result.Validation.TotalPercentage))
		return nil
	})
}

type setPortfolioCmd struct {
	app         *App
	beneficiary string
	value       string
}

func (*setPortfolioCmd) Name() string { return "set-portfolio" }
func (*setPortfolioCmd) Synopsis() string {
	return "sets a beneficiary's percentage of every asset at once"
}
func (*setPortfolioCmd) Usage() string {
	return `willctl set-portfolio -b <id> -v <percentage>

  Writes the same percentage on every asset of the wallet, replacing any
  asset-specific allocation of the beneficiary.
`
}

func (c *setPortfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.beneficiary, "b", "", "Beneficiary ID.")
	f.StringVar(&c.value, "v", "", "Percentage of the portfolio.")
}

func (c *setPortfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.edit(ctx, func(s *session) error {
		result, err := s.service.SetPortfolioPercentage(ctx, s.id, c.beneficiary, c.value)
		if err != nil {
			return err
		}
		if result.Ignored {
			fmt.Fprintf(c.app.Err, "Warning: %q is not a number, allocation left unchanged\n", c.value)
		}
		if result.Clamped {
			fmt.Fprintf(c.app.Err, "Warning: lowered from %s to the remaining headroom\n", renderer.Percent(result.Requested))
		}
		fmt.Fprintf(c.app.Out, "%s: %s of the portfolio\n", c.beneficiary, renderer.Percent(result.PortfolioPercentage))
		return nil
	})
}

type syncSharesCmd struct {
	app *App
}

func (*syncSharesCmd) Name() string { return "sync-shares" }
func (*syncSharesCmd) Synopsis() string {
	return "turns every beneficiary's share into its portfolio percentage"
}
func (*syncSharesCmd) Usage() string {
	return `willctl sync-shares

  Replaces all allocations: each beneficiary gets its share of every asset.
  Nothing changes when any share cannot be applied.
`
}

func (c *syncSharesCmd) SetFlags(f *flag.FlagSet) {}

func (c *syncSharesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.edit(ctx, func(s *session) error {
		results, err := s.service.SyncSharesToAllocations(ctx, s.id)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(c.app.Out, "%s: %s\n", r.BeneficiaryID, renderer.Percent(r.Applied))
		}
		return nil
	})
}

type reviewCmd struct {
	app *App
	raw bool
}

func (*reviewCmd) Name() string     { return "review" }
func (*reviewCmd) Synopsis() string { return "displays the will summary" }
func (*reviewCmd) Usage() string {
	return `willctl review [-raw]

  Shows beneficiaries, per-asset totals and warnings. Warnings never block.
`
}

func (c *reviewCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal styling.")
}

func (c *reviewCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.app.open(ctx)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	summary, err := s.service.Review(ctx, s.id)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	c.app.printMarkdown(renderer.RenderReview(summary), c.raw)
	return subcommands.ExitSuccess
}

// isOverAllocation reports whether err was a rejected over-allocating write
func isOverAllocation(err error) bool {
	return errors.Is(err, domain.ErrOverAllocation)
}
