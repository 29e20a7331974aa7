// Package fetch drives a Chromium instance over the rendered Google
// Calendar week view and turns the DOM into page snapshots for the
// normalization pipeline. It also owns the bounded retry loop that absorbs
// slow asynchronous rendering.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	appLog "calbar/internal/log"
	"calbar/internal/model"
)

const (
	weekViewURL = "https://calendar.google.com/calendar/r/week"
	// Opening calendar.google.com unauthenticated redirects to a product
	// page, so the sign-in flow goes through accounts.google.com with a
	// continue target.
	authURL = "https://accounts.google.com/ServiceLogin?continue=https://calendar.google.com/calendar/r/week"

	// The main calendar view exposes a heading attribute once rendered.
	viewReadySelector = `[data-view-heading]`

	openTimeout   = 30 * time.Second
	settleDelay   = 2 * time.Second
	authTimeout   = 5 * time.Minute
	actionTimeout = 20 * time.Second

	// Detail dialogs are opened per chip; each lookup gets its own budget
	// and the pass as a whole is capped so a crowded week cannot stall a
	// fetch cycle.
	detailTimeout    = 5 * time.Second
	detailOpenDelay  = 500 * time.Millisecond
	detailCloseDelay = 300 * time.Millisecond
	maxDetailLookups = 20
)

// ErrNotAuthenticated means the week view never appeared, which in
// practice means the browser profile holds no valid Google session.
var ErrNotAuthenticated = errors.New("calendar session is not authenticated")

// Source is the extraction input contract: something that can produce a
// page snapshot and reload itself between retry attempts.
type Source interface {
	Snapshot(ctx context.Context) (*model.PageSnapshot, error)
	Reload(ctx context.Context) error
}

// Client configures browser sessions over the week view.
type Client struct {
	// ProfileDir is the persistent Chromium profile holding the session.
	ProfileDir string
	// Headless hides the browser window.
	Headless bool
	// Loc is the display timezone used for the in-scope dates.
	Loc *time.Location
}

// Session is one live browser on the week view. It implements Source.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	loc     *time.Location
}

// Open launches the browser, navigates to the week view, and waits for it
// to render. Returns ErrNotAuthenticated when the view never appears.
func (c *Client) Open(parent context.Context) (*Session, error) {
	if err := os.MkdirAll(c.ProfileDir, 0o700); err != nil {
		return nil, fmt.Errorf("fetch: create profile dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(c.ProfileDir),
		chromedp.Flag("headless", c.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
		loc:     c.Loc,
	}
	if s.loc == nil {
		s.loc = time.Local
	}

	ctx, cancel := context.WithTimeout(browserCtx, openTimeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(weekViewURL),
		chromedp.WaitVisible(viewReadySelector, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		s.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("fetch: open week view: %w", err)
	}

	return s, nil
}

// Close tears the browser down.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// snapshotJS collects everything one pass needs in a single evaluation:
// week-date keys, event chip labels split by region, and the account-UI
// labels used for alias discovery.
const snapshotJS = `(() => {
	const out = {dates: [], allDay: [], timed: [], account: []};
	for (const el of document.querySelectorAll('[data-datekey]')) {
		const k = el.getAttribute('data-datekey');
		if (k) out.dates.push(k);
	}
	const chip = el => ({
		label: (el.getAttribute('aria-label') || el.textContent || '').trim(),
		id: el.getAttribute('data-eventid') || '',
	});
	for (const el of document.querySelectorAll('[data-eventid][data-allday="true"]')) {
		out.allDay.push(chip(el));
	}
	for (const el of document.querySelectorAll('[data-eventid]:not([data-allday="true"]), [role="button"][data-eventchip]')) {
		out.timed.push(chip(el));
	}
	for (const el of document.querySelectorAll('a[aria-label*="アカウント"], a[aria-label*="Account"]')) {
		out.account.push(el.getAttribute('aria-label') || '');
	}
	return out;
})()`

type rawChip struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

type rawSnapshot struct {
	Dates   []string  `json:"dates"`
	AllDay  []rawChip `json:"allDay"`
	Timed   []rawChip `json:"timed"`
	Account []string  `json:"account"`
}

// Snapshot reads the current DOM state into a PageSnapshot.
func (s *Session) Snapshot(parent context.Context) (*model.PageSnapshot, error) {
	// The session context owns the browser; parent only gates the call.
	if err := parent.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(s.ctx, actionTimeout)
	defer cancel()

	var raw rawSnapshot
	if err := chromedp.Run(ctx, chromedp.Evaluate(snapshotJS, &raw)); err != nil {
		return nil, fmt.Errorf("fetch: snapshot: %w", err)
	}

	snap := &model.PageSnapshot{
		Dates:         s.parseDates(raw.Dates),
		AccountLabels: raw.Account,
	}
	for _, c := range raw.AllDay {
		snap.Labels = append(snap.Labels, model.RawLabel{
			Text:      c.Label,
			ElementID: c.ID,
			Region:    model.RegionAllDay,
		})
	}
	for _, c := range raw.Timed {
		snap.Labels = append(snap.Labels, model.RawLabel{
			Text:      c.Label,
			ElementID: c.ID,
			Region:    model.RegionTimed,
		})
	}

	s.collectDetails(snap)

	appLog.Debug("page snapshot taken",
		"dates", len(snap.Dates),
		"labels", len(snap.Labels),
		"account_labels", len(snap.AccountLabels),
	)
	return snap, nil
}

// detailJS reads the open detail dialog: its text, the targets of its
// links, and the location field if one is marked up.
const detailJS = `(() => {
	const dlg = document.querySelector('[role="dialog"], [data-eventdetails]');
	if (!dlg) return {found: false, text: '', links: [], location: ''};
	const links = [];
	for (const a of dlg.querySelectorAll('a[href]')) {
		if (a.href) links.push(a.href);
	}
	const loc = dlg.querySelector('[data-location], [aria-label*="場所"], [aria-label*="location"]');
	return {
		found: true,
		text: dlg.innerText || '',
		links: links,
		location: loc ? (loc.textContent || '').trim() : '',
	};
})()`

// closeDetailJS prefers the dialog's close button; Escape is the fallback.
const closeDetailJS = `(() => {
	const btn = document.querySelector('[aria-label="閉じる"], [aria-label="Close"], button[aria-label*="close"]');
	if (!btn) return false;
	btn.click();
	return true;
})()`

type rawDetail struct {
	Found    bool     `json:"found"`
	Text     string   `json:"text"`
	Links    []string `json:"links"`
	Location string   `json:"location"`
}

// combined renders the dialog into one searchable blob: the visible text
// first, link targets after, so a URL written in the body wins over one
// buried in a link.
func (d rawDetail) combined() string {
	parts := make([]string, 0, 1+len(d.Links))
	if t := strings.TrimSpace(d.Text); t != "" {
		parts = append(parts, t)
	}
	for _, l := range d.Links {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "\n")
}

// collectDetails opens the detail dialog of up to maxDetailLookups timed
// chips and records what it finds on the labels. A failed lookup degrades
// that label to its aria-label text; it never fails the snapshot.
func (s *Session) collectDetails(snap *model.PageSnapshot) {
	looked := 0
	for i := range snap.Labels {
		rl := &snap.Labels[i]
		if rl.Region != model.RegionTimed || rl.ElementID == "" {
			continue
		}
		if looked >= maxDetailLookups {
			appLog.Debug("detail lookups capped", "cap", maxDetailLookups)
			return
		}
		looked++

		detail, err := s.openDetail(rl.ElementID)
		if err != nil {
			appLog.Debug("event detail unavailable", "element_id", rl.ElementID, "err", err)
			continue
		}
		rl.DetailText = detail.combined()
		rl.Location = detail.Location
	}
}

// openDetail clicks the chip with the given element id, reads the dialog,
// and closes it again.
func (s *Session) openDetail(id string) (rawDetail, error) {
	var detail rawDetail
	if strings.ContainsAny(id, `"\`) {
		return detail, fmt.Errorf("fetch: unusable element id")
	}

	ctx, cancel := context.WithTimeout(s.ctx, detailTimeout)
	defer cancel()

	clickJS := fmt.Sprintf(`(() => {
		const el = document.querySelector('[data-eventid="%s"]');
		if (!el) return false;
		el.click();
		return true;
	})()`, id)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickJS, &clicked)); err != nil {
		return detail, err
	}
	if !clicked {
		return detail, fmt.Errorf("fetch: event chip not found")
	}

	err := chromedp.Run(ctx,
		chromedp.Sleep(detailOpenDelay),
		chromedp.Evaluate(detailJS, &detail),
	)
	s.closeDetail()
	if err != nil {
		return detail, err
	}
	if !detail.Found {
		return detail, fmt.Errorf("fetch: detail dialog did not open")
	}
	return detail, nil
}

func (s *Session) closeDetail() {
	ctx, cancel := context.WithTimeout(s.ctx, detailTimeout)
	defer cancel()

	var closed bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(closeDetailJS, &closed)); err != nil {
		return
	}
	if !closed {
		_ = chromedp.Run(ctx, chromedp.KeyEvent(kb.Escape))
	}
	_ = chromedp.Run(ctx, chromedp.Sleep(detailCloseDelay))
}

// Reload refreshes the page and waits for the view to render again.
func (s *Session) Reload(parent context.Context) error {
	ctx, cancel := context.WithTimeout(s.ctx, openTimeout)
	defer cancel()
	if err := parent.Err(); err != nil {
		return err
	}

	err := chromedp.Run(ctx,
		chromedp.Reload(),
		chromedp.WaitVisible(viewReadySelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fetch: reload: %w", err)
	}
	return nil
}

// parseDates converts datekey attributes (YYYYMMDD) into midnight times in
// the display zone, deduplicated and sorted. When the page yields none, a
// Monday-start week around today stands in.
func (s *Session) parseDates(keys []string) []time.Time {
	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		d, err := time.ParseInLocation("20060102", k, s.loc)
		if err != nil {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	if len(dates) == 0 {
		today := model.Midnight(time.Now().In(s.loc))
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		monday := today.AddDate(0, 0, -offset)
		for i := 0; i < 7; i++ {
			dates = append(dates, monday.AddDate(0, 0, i))
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Authenticate opens a visible browser window on the sign-in flow and
// waits for the user to complete it, up to authTimeout.
func (c *Client) Authenticate(parent context.Context) error {
	if err := os.MkdirAll(c.ProfileDir, 0o700); err != nil {
		return fmt.Errorf("fetch: create profile dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(c.ProfileDir),
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	ctx, cancel := context.WithTimeout(browserCtx, authTimeout)
	defer cancel()

	appLog.Info("waiting for interactive Google sign-in", "timeout", authTimeout)
	err := chromedp.Run(ctx,
		chromedp.Navigate(authURL),
		chromedp.WaitVisible(viewReadySelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fetch: authentication did not complete: %w", err)
	}
	appLog.Info("authentication completed")
	return nil
}
