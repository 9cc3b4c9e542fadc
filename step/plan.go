package step

import (
	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/util"
)

// Filter is every input that decides which steps run.
type Filter struct {
	Platform common.Platform
	// Only and Skip come from the command line.
	Only []string
	Skip []string
	// ConfigOnly (misc.only) applies when Only is empty.
	ConfigOnly []string
	// Disabled (misc.disable) reports steps as skipped.
	Disabled []string
}

// Planned is a step with the reason it will not run, if any.
type Planned struct {
	Step       Step
	SkipReason string
}

func (p Planned) Runnable() bool { return p.SkipReason == "" }

// Plan filters the catalog. Steps outside --only or inside --skip are left
// out. Steps for another platform, or disabled in config and not named by
// --only, stay in the plan with a skip reason. The result only depends on
// its inputs.
func Plan(c *Catalog, f Filter) ([]Planned, error) {
	cliOnly, err := c.Resolve(util.SplitList(f.Only), "--only")
	if err != nil {
		return nil, err
	}
	skip, err := c.Resolve(util.SplitList(f.Skip), "--skip")
	if err != nil {
		return nil, err
	}
	cfgOnly, err := c.Resolve(f.ConfigOnly, "misc.only")
	if err != nil {
		return nil, err
	}
	disabled, err := c.Resolve(f.Disabled, "misc.disable")
	if err != nil {
		return nil, err
	}

	only := cliOnly
	if len(only) == 0 {
		only = cfgOnly
	}

	plan := make([]Planned, 0, len(c.steps))
	for _, s := range c.steps {
		if len(only) > 0 && !only[s.Name] {
			continue
		}
		if skip[s.Name] {
			continue
		}
		p := Planned{Step: s}
		switch {
		case !s.AppliesTo(f.Platform):
			p.SkipReason = ending.ReasonNotApplicable
		case disabled[s.Name] && !cliOnly[s.Name]:
			p.SkipReason = ending.ReasonDisabled
		}
		plan = append(plan, p)
	}
	return plan, nil
}
