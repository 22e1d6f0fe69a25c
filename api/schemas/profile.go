package schemas

// -- Device Profile Schemas --

// DeviceClass partitions the profile catalog.
type DeviceClass string

const (
	ClassDesktop DeviceClass = "desktop"
	ClassMobile  DeviceClass = "mobile"
)

// Viewport is the emulated screen of a device.
type Viewport struct {
	Width       int64   `json:"width"`
	Height      int64   `json:"height"`
	ScaleFactor float64 `json:"scale_factor"`
	IsMobile    bool    `json:"is_mobile"`
	HasTouch    bool    `json:"has_touch"`
}

// DeviceProfile is a named bundle of identity and viewport settings. Profiles are
// selected from a fixed catalog, never created per session.
type DeviceProfile struct {
	Name      string      `json:"name"`
	Class     DeviceClass `json:"class"`
	UserAgent string      `json:"user_agent"`
	Platform  string      `json:"platform"`
	Viewport  Viewport    `json:"viewport"`
}
