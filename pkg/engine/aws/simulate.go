package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// Denial is one simulated action that the policy does not allow.
type Denial struct {
	Action   string
	Resource string
	Decision string
}

// Simulator checks generated policies with the IAM policy simulator.
type Simulator struct {
	Client IAMAPI
}

func (s *Session) Simulator() *Simulator {
	c := clientFor(&s.clients, clientKey{service: "iam", region: s.Region, account: s.Account},
		func() IAMAPI { return s.API.IAM(s.Default.ConfigForRegion(s.Region)) })
	return &Simulator{Client: c}
}

// Simulate evaluates actions against resources under policy and returns
// every result whose decision is not "allowed".
func (s *Simulator) Simulate(ctx context.Context, policy string, actions, resources []string) ([]Denial, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	in := &iam.SimulateCustomPolicyInput{
		PolicyInputList: []string{policy},
		ActionNames:     actions,
		ResourceArns:    resources,
	}

	var denials []Denial
	p := iam.NewSimulateCustomPolicyPaginator(s.Client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("policy simulation failed: %w", err)
		}
		for _, r := range page.EvaluationResults {
			if r.EvalDecision == types.PolicyEvaluationDecisionTypeAllowed {
				continue
			}
			denials = append(denials, Denial{
				Action:   aws.ToString(r.EvalActionName),
				Resource: aws.ToString(r.EvalResourceName),
				Decision: string(r.EvalDecision),
			})
		}
	}
	return denials, nil
}
