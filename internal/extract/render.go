package extract

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jeffrey/intellinieuws/pkg/utils"
)

var stealthScript = `() => {
	Object.defineProperty(navigator, 'webdriver', {get: () => false});
	window.chrome = {runtime: {}};
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({state: Notification.permission}) :
			originalQuery(parameters)
	);
}`

var pageRotator = utils.NewUserAgentRotator(true)

// renderPage loads rawURL in a JS-capable headless tab and returns the
// rendered HTML, applying a stealth script, a rotated user agent, a
// 1920x1080 viewport and a randomized post-load delay.
func renderPage(ctx context.Context, b *rod.Browser, rawURL string, waitAfterLoad time.Duration) (string, error) {
	page, err := b.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	_, _ = page.Eval(stealthScript) // best-effort; extraction proceeds without it

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: pageRotator.GetUserAgent()})
	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1920, Height: 1080, DeviceScaleFactor: 1, Mobile: false,
	})

	if err := page.Navigate(rawURL); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load timeout: %w", err)
	}

	delay := waitAfterLoad + time.Duration(rand.Intn(1000))*time.Millisecond
	time.Sleep(delay)

	_, _ = page.Eval(`window.scrollTo(0, document.body.scrollHeight / 2)`)
	time.Sleep(500 * time.Millisecond)

	return page.HTML()
}
