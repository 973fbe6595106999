package xvol

// UnknownID is the sentinel returned for a space ID that has never been
// computed or assigned.
const UnknownID = "None"

// Space IDs of the well-known template spaces. A volume whose space ID equals
// one of these tags is in that template space regardless of its modality.
const (
	ICBM152ID = "ICBM152"
	ICBM452ID = "ICBM452"
	ATROPOSID = "ATROPOS"
	SRI24ID   = "SRI24"
	LeksellID = "LEKSELL"
)
