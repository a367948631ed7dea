package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Page is one browser tab.
type Page interface {
	// Navigate loads url and waits until waitSelector is visible.
	Navigate(ctx context.Context, url, waitSelector string) error
	// Click clicks the first element matching selector, if visible.
	Click(ctx context.Context, selector string) error
	// ClickText clicks the first element matching selector whose text contains text.
	ClickText(ctx context.Context, selector, text string) error
	// Reload reloads the page and waits until waitSelector is visible.
	Reload(ctx context.Context, waitSelector string) error
	// WaitVisible blocks until selector is visible.
	WaitVisible(ctx context.Context, selector string) error
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
	// Close closes the tab. Safe to call repeatedly.
	Close() error
}

// Opener creates pages. *Manager satisfies it.
type Opener interface {
	NewPage() (Page, error)
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on the tab, bounded by ctx. Cancelling ctx aborts the
// actions without closing the tab.
func (t *tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (t *tab) Navigate(ctx context.Context, url, waitSelector string) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}
	if err := t.run(ctx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (t *tab) Click(ctx context.Context, selector string) error {
	if err := t.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (t *tab) ClickText(ctx context.Context, selector, text string) error {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const el = Array.from(document.querySelectorAll(%q)).find(e => e.textContent.includes(%q));
		if (!el) return false;
		el.click();
		return true;
	})()`, selector, text)
	if err := t.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("click %s %q: %w", selector, text, err)
	}
	if !clicked {
		return fmt.Errorf("click %s %q: no matching element", selector, text)
	}
	return nil
}

func (t *tab) Reload(ctx context.Context, waitSelector string) error {
	actions := []chromedp.Action{chromedp.Reload()}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}
	if err := t.run(ctx, actions...); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (t *tab) WaitVisible(ctx context.Context, selector string) error {
	if err := t.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (t *tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (t *tab) Close() error {
	t.once.Do(t.cancel)
	return nil
}

// Settle waits d or until ctx is done. Pages need a moment after clicks that
// trigger client-side rendering.
func Settle(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchHTML opens a tab, loads url, waits for waitSelector and returns the
// rendered markup. The tab is always closed.
func FetchHTML(ctx context.Context, o Opener, url, waitSelector string) (string, error) {
	p, err := o.NewPage()
	if err != nil {
		return "", err
	}
	defer p.Close()

	if err := p.Navigate(ctx, url, waitSelector); err != nil {
		return "", err
	}
	return p.HTML(ctx)
}
