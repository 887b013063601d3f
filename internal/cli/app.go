// Package cli implements willctl, a command line editor for a will draft kept in a JSON file.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/balance"
	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/cache"
	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/pricefeed"
	"github.com/YounesEssl/zlegacy-sub000/internal/config"
	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/registry"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/will"
)

// App holds what every subcommand shares. As a CLI application it lives for a single command.
type App struct {
	DraftPath string
	Policy    portfolio.WritePolicy
	Config    *config.Config
	Logger    logging.Logger
	Out       io.Writer
	Err       io.Writer

	// Balances and Prices override the HTTP clients built from Config
	Balances domain.BalanceClient
	Prices   domain.PriceClient
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&initCmd{app: app}, "draft")
	c.Register(&refreshCmd{app: app}, "draft")
	c.Register(&reviewCmd{app: app}, "draft")

	c.Register(&addBeneficiaryCmd{app: app}, "beneficiaries")
	c.Register(&removeBeneficiaryCmd{app: app}, "beneficiaries")
	c.Register(&setShareCmd{app: app}, "beneficiaries")
	c.Register(&resetSharesCmd{app: app}, "beneficiaries")

	c.Register(&setAllocationCmd{app: app}, "allocations")
	c.Register(&setPortfolioCmd{app: app}, "allocations")
	c.Register(&syncSharesCmd{app: app}, "allocations")
}

// fileAssets serves the snapshot stored in the draft file
type fileAssets struct {
	snapshot domain.AssetSnapshot
}

func (f *fileAssets) Snapshot(string) domain.AssetSnapshot { return f.snapshot }
func (f *fileAssets) Track(string)                         {}

// session is a draft file loaded into a will service
type session struct {
	service     *will.WillService
	assets      *fileAssets
	id          uuid.UUID
	ownerWallet string
}

func (a *App) newService(assets domain.AssetSource) *will.WillService {
	return will.NewWillService(assets, nil, a.Policy, a.Logger, nil)
}

// open loads the draft file into a fresh will service
func (a *App) open(ctx context.Context) (*session, error) {
	f, err := readDraftFile(a.DraftPath)
	if err != nil {
		return nil, err
	}
	assets := &fileAssets{snapshot: f.snapshot()}
	service := a.newService(assets)
	state, err := service.ImportDraft(ctx, f.state())
	if err != nil {
		return nil, fmt.Errorf("draft file %q is invalid: %w", a.DraftPath, err)
	}
	return &session{service: service, assets: assets, id: state.ID, ownerWallet: state.OwnerWallet}, nil
}

// close writes the session's draft back to the draft file
func (a *App) close(ctx context.Context, s *session) error {
	state, err := s.service.ExportDraft(ctx, s.id)
	if err != nil {
		return err
	}
	return writeDraftFile(a.DraftPath, newDraftFile(state, s.assets.snapshot))
}

// edit runs fn on the loaded draft and saves the result when fn succeeds
func (a *App) edit(ctx context.Context, fn func(s *session) error) subcommands.ExitStatus {
	s, err := a.open(ctx)
	if err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := fn(s); err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		if isOverAllocation(err) {
			fmt.Fprintln(a.Err, "Nothing was changed. Lower another allocation first or set OVERALLOCATION_POLICY=clamp.")
		}
		return subcommands.ExitFailure
	}
	if err := a.close(ctx, s); err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// newRegistry builds an asset registry from the configured clients.
// The returned func releases the Redis connection when one was opened.
func (a *App) newRegistry(ctx context.Context) (*registry.AssetRegistry, func(), error) {
	balances := a.Balances
	if balances == nil {
		balances = balance.NewClient(a.Config.Balance.URL, a.Config.Registry.HTTPTimeout)
	}
	prices := a.Prices
	if prices == nil {
		prices = pricefeed.NewClient(a.Config.PriceFeed.URL, a.Config.Registry.HTTPTimeout, a.Config.PriceFeed.RequestsPerSecond)
	}

	var priceCache domain.PriceCache
	release := func() {}
	if a.Config.Redis.Enabled {
		client, err := cache.Connect(ctx, a.Config.Redis.Addr(), a.Config.Redis.Password, a.Config.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		priceCache = cache.NewPriceCache(client)
		release = func() { _ = client.Close() }
	}

	return registry.NewAssetRegistry(balances, prices, priceCache, a.Config.PriceFeed.CacheTTL, a.Logger, nil), release, nil
}

// printMarkdown renders markdown for the terminal, falling back to the raw text
func (a *App) printMarkdown(md string, raw bool) {
	if !raw {
		out, err := glamour.Render(md, "auto")
		if err == nil {
			fmt.Fprint(a.Out, out)
			return
		}
		if a.Logger != nil {
			a.Logger.Debug("markdown rendering failed", logging.Err(err))
		}
	}
	fmt.Fprint(a.Out, md)
}
