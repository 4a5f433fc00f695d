// Package flow loads the HCL files that describe an automation run: an
// optional manually entered patient plus an ordered list of step blocks,
// each naming the runner that executes it.
package flow

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/patient"
)

// Flow is one named automation run definition.
type Flow struct {
	Name    string
	Patient *PatientBlock
	Steps   []*Step
}

// PatientBlock carries manually entered patient fields. Anything left
// empty here is filled from the OCR extraction at run time. The name can
// be given either as a single `name` or split into `last_name` and
// `first_name`; the split form wins when both are present.
type PatientBlock struct {
	ChartNo   string `hcl:"chart_no,optional"`
	Name      string `hcl:"name,optional"`
	FirstName string `hcl:"first_name,optional"`
	LastName  string `hcl:"last_name,optional"`
	BirthDate string `hcl:"birth_date,optional"`
	Sex       string `hcl:"sex,optional"`
	Phone     string `hcl:"phone,optional"`
}

// Step is one `step "<runner>" "<name>"` block. Its arguments stay as an
// undecoded body so each runner can decode them into its own input
// struct against the run's evaluation context.
type Step struct {
	RunnerType string
	Name       string
	Body       hcl.Body
}

// ID returns the step's unique identifier within a flow.
func (s *Step) ID() string {
	return s.RunnerType + "." + s.Name
}

type hclFlowFile struct {
	Flows []*hclFlow `hcl:"flow,block"`
}

type hclFlow struct {
	Name    string        `hcl:"name,label"`
	Patient *PatientBlock `hcl:"patient,block"`
	Steps   []*hclStep    `hcl:"step,block"`
}

type hclStep struct {
	RunnerType string   `hcl:"runner,label"`
	Name       string   `hcl:"name,label"`
	Body       hcl.Body `hcl:",remain"`
}

// Load parses the flow file at path and returns its flows in file order.
func Load(ctx context.Context, path string) ([]*Flow, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading flow file", "path", path)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse flow file %s: %w", path, diags)
	}

	var parsed hclFlowFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode flow file %s: %w", path, diags)
	}

	if len(parsed.Flows) == 0 {
		return nil, fmt.Errorf("flow file %s contains no flow blocks", path)
	}

	flows := make([]*Flow, 0, len(parsed.Flows))
	for _, pf := range parsed.Flows {
		flow := &Flow{Name: pf.Name, Patient: pf.Patient}
		seen := make(map[string]bool)
		for _, ps := range pf.Steps {
			step := &Step{RunnerType: ps.RunnerType, Name: ps.Name, Body: ps.Body}
			if seen[step.ID()] {
				return nil, fmt.Errorf("flow %q declares step %q twice", pf.Name, step.ID())
			}
			seen[step.ID()] = true
			flow.Steps = append(flow.Steps, step)
		}
		if len(flow.Steps) == 0 {
			return nil, fmt.Errorf("flow %q has no steps", pf.Name)
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// Select returns the flow with the given name, or the only flow when
// name is empty.
func Select(flows []*Flow, name string) (*Flow, error) {
	if name == "" {
		if len(flows) == 1 {
			return flows[0], nil
		}
		return nil, fmt.Errorf("flow file defines %d flows, pick one with -flow", len(flows))
	}
	for _, f := range flows {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("flow %q not found", name)
}

// ManualPatient converts the flow's patient block into a partial record.
// Returns nil when the flow has no patient block.
func (f *Flow) ManualPatient() *patient.Patient {
	if f.Patient == nil {
		return nil
	}
	fam, given := patient.SplitName(f.Patient.Name)
	if f.Patient.FirstName != "" || f.Patient.LastName != "" {
		fam, given = f.Patient.LastName, f.Patient.FirstName
	}
	return &patient.Patient{
		ChartNo:    f.Patient.ChartNo,
		FamilyName: fam,
		GivenName:  given,
		BirthDate:  f.Patient.BirthDate,
		Sex:        f.Patient.Sex,
		Phone:      f.Patient.Phone,
	}
}
