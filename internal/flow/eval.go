package flow

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/mkweon/cephauto/internal/patient"
	"github.com/mkweon/cephauto/internal/settings"
)

// NewEvalContext builds the evaluation context step arguments are
// resolved against. Flow files can reference patient fields
// (patient.chart_no, patient.name, ...) and configured paths
// (paths.staging, paths.reports, ...).
func NewEvalContext(p *patient.Patient, paths settings.Paths) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"paths": cty.ObjectVal(map[string]cty.Value{
			"staging":     cty.StringVal(paths.Staging),
			"reports":     cty.StringVal(paths.Reports),
			"backup":      cty.StringVal(paths.Backup),
			"screenshots": cty.StringVal(paths.Screenshots),
		}),
	}

	if p == nil {
		p = &patient.Patient{}
	}
	vars["patient"] = cty.ObjectVal(map[string]cty.Value{
		"chart_no":   cty.StringVal(p.ChartNo),
		"name":       cty.StringVal(p.FullName()),
		"birth_date": cty.StringVal(p.BirthDate),
		"sex":        cty.StringVal(p.Sex),
		"phone":      cty.StringVal(p.Phone),
	})

	return &hcl.EvalContext{Variables: vars}
}

// DecodeStep resolves a step's arguments into the runner's input struct.
func DecodeStep(step *Step, evalCtx *hcl.EvalContext, target any) error {
	diags := gohcl.DecodeBody(step.Body, evalCtx, target)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode arguments of step %q: %s", step.ID(), diags.Error())
	}
	return nil
}
