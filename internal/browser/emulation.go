package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
	"go.uber.org/zap"
)

// emulateProfile overrides the user agent and the viewport so the site sees one
// consistent device for the whole visit.
func emulateProfile(profile schemas.DeviceProfile, logger *zap.Logger) chromedp.Action {
	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if profile.UserAgent == "" {
				return nil
			}
			override := emulation.SetUserAgentOverride(profile.UserAgent)
			if profile.Platform != "" {
				override = override.WithPlatform(profile.Platform)
			}
			if err := override.Do(ctx); err != nil {
				logger.Error("Failed to set user agent override", zap.Error(err))
				return fmt.Errorf("emulation: failed to set user agent: %w", err)
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			vp := profile.Viewport
			if vp.Width <= 0 || vp.Height <= 0 {
				return nil
			}
			if err := chromedp.EmulateViewport(vp.Width, vp.Height, viewportOptions(vp)...).Do(ctx); err != nil {
				logger.Error("Failed to set device metrics", zap.Error(err))
				return fmt.Errorf("emulation: failed to set viewport: %w", err)
			}
			return nil
		}),
	}
}

func viewportOptions(vp schemas.Viewport) []chromedp.EmulateViewportOption {
	opts := make([]chromedp.EmulateViewportOption, 0, 4)
	if vp.ScaleFactor > 0 {
		opts = append(opts, chromedp.EmulateScale(vp.ScaleFactor))
	}
	if vp.Height > vp.Width {
		opts = append(opts, chromedp.EmulatePortrait)
	} else {
		opts = append(opts, chromedp.EmulateLandscape)
	}
	if vp.IsMobile {
		opts = append(opts, chromedp.EmulateMobile)
	}
	if vp.HasTouch {
		opts = append(opts, chromedp.EmulateTouch)
	}
	return opts
}
