package stage

import (
	"context"
	"errors"
)

// Processor is the contractual middle slot of the pipeline. It validates that
// collection produced a complete context and otherwise passes it through
// unchanged; cleaning or sentiment logic would live here if it ever existed.
type Processor struct{}

func NewProcessor() *Processor { return &Processor{} }

func (p *Processor) Stage() Stage {
	return Stage{Name: NameProcess, Run: p.Run}
}

func (p *Processor) Run(_ context.Context, sc *Context) error {
	if sc.Web == nil {
		return errors.New("missing web findings from collect stage")
	}
	if sc.Assistant == nil {
		return errors.New("missing assistant take from collect stage")
	}
	return nil
}
