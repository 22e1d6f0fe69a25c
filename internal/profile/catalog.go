package profile

import "github.com/xkilldash9x/patrol-cli/api/schemas"

// DefaultCatalog returns the built-in desktop and mobile profiles.
func DefaultCatalog() []schemas.DeviceProfile {
	return []schemas.DeviceProfile{
		{
			Name:      "desktop-windows-chrome",
			Class:     schemas.ClassDesktop,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
			Platform:  "Win32",
			Viewport:  schemas.Viewport{Width: 1366, Height: 768, ScaleFactor: 1},
		},
		{
			Name:      "desktop-mac-safari",
			Class:     schemas.ClassDesktop,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.6 Safari/605.1.15",
			Platform:  "MacIntel",
			Viewport:  schemas.Viewport{Width: 1366, Height: 768, ScaleFactor: 1},
		},
		{
			Name:      "iphone-14",
			Class:     schemas.ClassMobile,
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
			Platform:  "iPhone",
			Viewport:  schemas.Viewport{Width: 390, Height: 844, ScaleFactor: 3, IsMobile: true, HasTouch: true},
		},
		{
			Name:      "pixel-7",
			Class:     schemas.ClassMobile,
			UserAgent: "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Mobile Safari/537.36",
			Platform:  "Linux armv8l",
			Viewport:  schemas.Viewport{Width: 412, Height: 915, ScaleFactor: 2.75, IsMobile: true, HasTouch: true},
		},
		{
			Name:      "galaxy-s22",
			Class:     schemas.ClassMobile,
			UserAgent: "Mozilla/5.0 (Linux; Android 13; SM-S901B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Mobile Safari/537.36",
			Platform:  "Linux armv8l",
			Viewport:  schemas.Viewport{Width: 360, Height: 800, ScaleFactor: 4, IsMobile: true, HasTouch: true},
		},
	}
}
