package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Extraction
	ExtInfo    Code = 1000
	ExtRead    Code = 1001
	ExtParse   Code = 1002
	ExtDupID   Code = 1003
	ExtBadName Code = 1004

	// Module graph
	GraphInfo          Code = 2000
	GraphMissingModule Code = 2001
	GraphCycle         Code = 2002
	GraphDuplicate     Code = 2003
	GraphUnknownEntry  Code = 2004

	// Loader synthesis
	SynthInfo  Code = 3000
	SynthEmpty Code = 3001

	// Resolution of the synthesized loader by the bundler
	ResolveInfo    Code = 4000
	ResolveSlot    Code = 4001
	ResolveModule  Code = 4002
	ResolveUnused  Code = 4003
	ResolveCorrupt Code = 4004
	ResolveWrite   Code = 4005

	// Manifest
	ManifestInfo     Code = 5000
	ManifestConflict Code = 5001
	ManifestWrite    Code = 5002
	ManifestEncode   Code = 5003

	// Build orchestration
	BuildInfo       Code = 6000
	BuildPageFailed Code = 6001
	BuildConfig     Code = 6002
)

var codeDescription = map[Code]string{
	UnknownCode:        "Unknown error",
	ExtInfo:            "Extraction information",
	ExtRead:            "Module could not be read",
	ExtParse:           "Malformed action marker",
	ExtDupID:           "Duplicate action id in module",
	ExtBadName:         "Invalid action export name",
	GraphInfo:          "Module graph information",
	GraphMissingModule: "Reference to unknown module",
	GraphCycle:         "Module participates in a reference cycle",
	GraphDuplicate:     "Duplicate module",
	GraphUnknownEntry:  "Unknown entry module",
	SynthInfo:          "Loader synthesis information",
	SynthEmpty:         "Empty action set reached the loader synthesizer",
	ResolveInfo:        "Loader resolution information",
	ResolveSlot:        "Unknown import slot in loader",
	ResolveModule:      "Import slot module cannot be resolved",
	ResolveUnused:      "Import slot is never referenced",
	ResolveCorrupt:     "Loader source is not a valid module",
	ResolveWrite:       "Loader chunk could not be written",
	ManifestInfo:       "Manifest information",
	ManifestConflict:   "Action id claimed by more than one export",
	ManifestWrite:      "Manifest could not be written",
	ManifestEncode:     "Manifest could not be encoded",
	BuildInfo:          "Build information",
	BuildPageFailed:    "Page pipeline failed",
	BuildConfig:        "Invalid build configuration",
}

// ID returns the stable identifier, e.g. "EXT1002".
func (c Code) ID() string {
	ic := int(c)
	switch {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("EXT%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("GRA%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("MAN%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("BLD%04d", ic)
	}
	return "E0000"
}

// Title returns the human description of the code.
func (c Code) Title() string {
	if s, ok := codeDescription[c]; ok {
		return s
	}
	return codeDescription[UnknownCode]
}

func (c Code) String() string {
	return c.ID()
}
