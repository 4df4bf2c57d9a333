package pipeline

import "fmt"

// Stage is one of the six fixed phases of a reconstruction run. Plugins are
// re-sorted by their priority for a stage right before the stage starts.
type Stage int

const (
	StageBeginning Stage = iota
	StageOriginalHologram
	StageHologram
	StageFilteredField
	StagePropagatedField
	StageEnding
)

var stageNames = [...]string{
	StageBeginning:        "beginning",
	StageOriginalHologram: "original_hologram",
	StageHologram:         "hologram",
	StageFilteredField:    "filtered_field",
	StagePropagatedField:  "propagated_field",
	StageEnding:           "ending",
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageBeginning,
		StageOriginalHologram,
		StageHologram,
		StageFilteredField,
		StagePropagatedField,
		StageEnding,
	}
}

func (s Stage) String() string {
	if s < StageBeginning || s > StageEnding {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage maps a stage name as printed by String back to a Stage.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("pipeline: unknown stage %q", name)
}
