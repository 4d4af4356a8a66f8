package domain

// Capability tags what a transformer or repairer does.
type Capability string

const (
	CapabilityFreshRebuild      Capability = "fresh-rebuild"
	CapabilityLibraryDirect     Capability = "library-direct"
	CapabilityAutomationCopy    Capability = "automation-copy"
	CapabilityRawCopy           Capability = "raw-copy"
	CapabilityAutomationRepair  Capability = "automation-repair"
	CapabilityTabularExtract    Capability = "tabular-extract"
	CapabilityStructuralRebuild Capability = "structural-rebuild"
	CapabilityExternalTool      Capability = "external-tool"
)

// UsesAutomation reports whether the capability drives the automation surface.
func (c Capability) UsesAutomation() bool {
	return c == CapabilityAutomationCopy || c == CapabilityAutomationRepair
}

// StrategyDescriptor identifies a transformer and its position in the strategy chain.
type StrategyDescriptor struct {
	Name       string     `json:"name"`
	Ordinal    int        `json:"ordinal"`
	Capability Capability `json:"capability"`
}

// RepairDescriptor identifies a repairer and its position in the repair chain.
type RepairDescriptor struct {
	Name       string     `json:"name"`
	Ordinal    int        `json:"ordinal"`
	Capability Capability `json:"capability"`
}
