package comparecmder

import (
	"github.com/spf13/cobra"

	"github.com/docweave/weave/pkg/rag"
)

const generateLongDesc string = `Generate comparison requirements.

Both indexes are asked what matters for the comparison subject, and the
answers are condensed into a list of measurable requirements.

Examples:
  weave compare generate --indexes vendor-a,vendor-b --subject "storage arrays" --save reqs.json`

const refineLongDesc string = `Refine comparison requirements from feedback.

Examples:
  weave compare refine --indexes vendor-a,vendor-b --requirements reqs.json --feedback "drop pricing" --save reqs.json`

const executeLongDesc string = `Execute a comparison.

Every requirement is answered from both indexes. Backend errors for single
requirements are reported and the remaining results are still shown.

Examples:
  weave compare execute --indexes vendor-a,vendor-b --requirements reqs.json`

func newGenerateCmd() *cobra.Command {
	p := &phaseCommander{phase: rag.PhaseGenerate}
	var (
		num     int
		role    string
		subject string
		target  string
	)

	cmd := p.command("generate", "Generate comparison requirements", generateLongDesc, func() (rag.CompareRequest, error) {
		return rag.CompareRequest{
			NumRequirements:   num,
			Role:              role,
			ComparisonSubject: subject,
			ComparisonTarget:  target,
		}, nil
	})

	cmd.Flags().IntVarP(&num, "num", "n", 10, "Number of requirements to generate")
	cmd.Flags().StringVar(&role, "role", "", "Role the comparison is written for")
	cmd.Flags().StringVar(&subject, "subject", "", "What is being compared")
	cmd.Flags().StringVar(&target, "target", "", "What the comparison should decide")

	return cmd
}

func newRefineCmd() *cobra.Command {
	p := &phaseCommander{phase: rag.PhaseRefine}
	var feedback string

	cmd := p.command("refine", "Refine comparison requirements", refineLongDesc, func() (rag.CompareRequest, error) {
		reqs, err := loadRequirements(p.requirements)
		if err != nil {
			return rag.CompareRequest{}, err
		}
		return rag.CompareRequest{Requirements: reqs, Feedback: feedback}, nil
	})

	cmd.Flags().StringVar(&p.requirements, "requirements", "", "JSON file with the requirements to refine")
	cmd.Flags().StringVar(&feedback, "feedback", "", "How the requirements should change")
	_ = cmd.MarkFlagRequired("feedback")

	return cmd
}

func newExecuteCmd() *cobra.Command {
	p := &phaseCommander{phase: rag.PhaseExecute}

	cmd := p.command("execute", "Execute a comparison", executeLongDesc, func() (rag.CompareRequest, error) {
		reqs, err := loadRequirements(p.requirements)
		if err != nil {
			return rag.CompareRequest{}, err
		}
		return rag.CompareRequest{Requirements: reqs}, nil
	})

	cmd.Flags().StringVar(&p.requirements, "requirements", "", "JSON file with the requirements to answer")

	return cmd
}
