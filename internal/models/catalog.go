package models

// BoardType describes one tileboard layout the rig can calibrate.
type BoardType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Number      int    `json:"number"` // detector count
}

// BoardCatalog is keyed by board type tag.
type BoardCatalog map[string]BoardType

// Board catalog kinds.
const (
	BoardKindSystem   = "system"
	BoardKindStandard = "standard"
)

// Reference is a reference calibration session usable by a standard calibration.
type Reference struct {
	Tag       string `json:"tag"`
	BoardType string `json:"boardtype"`
	Time      string `json:"time"`
}

// ReferenceList is the validreference report.
type ReferenceList struct {
	Valid []Reference `json:"valid"`
}
