package trayitem

// Category is the category of the item.
type Category int

// StatusNotifierItem categories.
const (
	// The item describes the status of a generic application, for instance the
	// current state of a media player.
	CategoryApplicationStatus Category = iota

	// The item describes the status of communication oriented applications, like
	// an instant messenger or an email client.
	CategoryCommunications

	// The item describes services of the system not seen as a stand alone
	// application by the user, such as an indicator for the activity of a disk
	// indexing service.
	CategorySystemServices

	// The item describes the state and control of a particular hardware, such as
	// an indicator of the battery charge or sound card volume control.
	CategoryHardware
)

var categoryWireNames = [...]string{
	CategoryApplicationStatus: "ApplicationStatus",
	CategoryCommunications:    "Communications",
	CategorySystemServices:    "SystemServices",
	CategoryHardware:          "Hardware",
}

// String returns the name of the category as sent over D-Bus.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryWireNames) {
		return categoryWireNames[CategoryApplicationStatus]
	}
	return categoryWireNames[c]
}

// Status is the status of the item or of the associated application.
type Status int

// StatusNotifierItem statuses.
const (
	// The item doesn't convey important information to the user, it can be
	// considered an "idle" status and is likely that visualizations will choose
	// to hide it.
	StatusPassive Status = iota

	// The item is active, is more important that the item will be shown in some
	// way to the user.
	StatusActive

	// The item carries really important information for the user, such as battery
	// charge running out and is wants to incentive the direct user intervention.
	StatusNeedsAttention
)

var statusWireNames = [...]string{
	StatusPassive:        "Passive",
	StatusActive:         "Active",
	StatusNeedsAttention: "NeedsAttention",
}

// String returns the name of the status as sent over D-Bus.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusWireNames) {
		return statusWireNames[StatusActive]
	}
	return statusWireNames[s]
}

// Orientation is the orientation of a scroll request.
type Orientation string

const (
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
)

// parseOrientation maps the orientation argument of the Scroll method.
// Anything but "horizontal" is treated as vertical.
func parseOrientation(s string) Orientation {
	switch s {
	case "horizontal", "Horizontal":
		return OrientationHorizontal
	default:
		return OrientationVertical
	}
}
