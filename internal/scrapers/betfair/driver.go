package betfair

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vodeneev/raceodds/internal/browser"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// Driver keeps one market page open and refreshes it in place with the
// market's refresh button.
type Driver struct {
	opener      browser.Opener
	url         string
	pageTimeout time.Duration

	mu   sync.Mutex
	page browser.Page
}

func NewDriver(opener browser.Opener, race models.RaceMetadata, pageTimeout time.Duration) *Driver {
	return &Driver{opener: opener, url: race.URL, pageTimeout: pageTimeout}
}

func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil {
		d.page.Close()
		d.page = nil
	}
	page, err := d.opener.NewPage()
	if err != nil {
		return err
	}
	if err := page.Navigate(ctx, d.url, runnerSelector); err != nil {
		page.Close()
		return fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
	}
	d.page = page
	return nil
}

func (d *Driver) RefreshAndExtract(ctx context.Context) (models.OddsSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page == nil {
		return nil, fmt.Errorf("%w: market page not open", models.ErrResourceUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, d.pageTimeout)
	defer cancel()

	if err := d.page.Click(ctx, refreshSelector); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtractionFailure, err)
	}
	if err := d.page.WaitVisible(ctx, runnerSelector); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtractionFailure, err)
	}
	html, err := d.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtractionFailure, err)
	}
	return ParseOdds(html)
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil
	}
	err := d.page.Close()
	d.page = nil
	return err
}
