package render

import "strings"

// Group is the display category of a raw tracker status.
type Group string

const (
	GroupRegistration Group = "registration"
	GroupDeposit      Group = "deposit"
	GroupRejected     Group = "rejected"
)

var statusGroups = map[string]Group{
	"registration": GroupRegistration,
	"lead":         GroupRegistration,
	"signup":       GroupRegistration,
	"register":     GroupRegistration,
	"deposit":      GroupDeposit,
	"sale":         GroupDeposit,
	"ftd":          GroupDeposit,
	"purchase":     GroupDeposit,
	"payment":      GroupDeposit,
	"reject":       GroupRejected,
	"rejected":     GroupRejected,
	"trash":        GroupRejected,
	"refuse":       GroupRejected,
}

// NormalizeStatus picks the template group for status. Unknown statuses
// render as registrations. Routing never uses this grouping.
func NormalizeStatus(status string) Group {
	if g, ok := statusGroups[strings.ToLower(status)]; ok {
		return g
	}
	return GroupRegistration
}
