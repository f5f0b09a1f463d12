package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegions(t *testing.T) {
	s, _ := newTestSession(t)
	calls := 0
	s.API.EC2 = func(aws.Config) EC2API {
		return &mockEC2{DescribeRegionsFunc: func(_ context.Context, in *ec2.DescribeRegionsInput) (*ec2.DescribeRegionsOutput, error) {
			calls++
			assert.True(t, aws.ToBool(in.AllRegions))
			return &ec2.DescribeRegionsOutput{Regions: []ec2types.Region{
				{RegionName: aws.String("us-west-2")},
				{RegionName: aws.String("eu-west-1")},
			}}, nil
		}}
	}

	ctx := context.Background()
	assert.Equal(t, []string{"eu-west-1", "us-west-2"}, s.Regions(ctx))
	assert.True(t, s.IsRegion(ctx, "eu-west-1"))
	assert.False(t, s.IsRegion(ctx, "us-east-10"))
	assert.Equal(t, 1, calls)
}

func TestRegionsFallback(t *testing.T) {
	s, _ := newTestSession(t)
	s.API.EC2 = func(aws.Config) EC2API {
		return &mockEC2{DescribeRegionsFunc: func(context.Context, *ec2.DescribeRegionsInput) (*ec2.DescribeRegionsOutput, error) {
			return nil, errors.New("UnauthorizedOperation")
		}}
	}
	ctx := context.Background()
	assert.True(t, s.IsRegion(ctx, "us-east-1"))
	assert.True(t, s.IsRegion(ctx, "ap-southeast-2"))
	assert.False(t, s.IsRegion(ctx, "moon-base-1"))
}

func TestSimulate(t *testing.T) {
	s, _ := newTestSession(t)
	s.API.IAM = func(aws.Config) IAMAPI {
		return &mockIAM{SimulateCustomPolicyFunc: func(_ context.Context, in *iam.SimulateCustomPolicyInput) (*iam.SimulateCustomPolicyOutput, error) {
			assert.Equal(t, []string{`{"Version":"2012-10-17"}`}, in.PolicyInputList)
			return &iam.SimulateCustomPolicyOutput{EvaluationResults: []iamtypes.EvaluationResult{
				{EvalActionName: aws.String("dynamodb:PutItem"), EvalResourceName: aws.String("*"), EvalDecision: iamtypes.PolicyEvaluationDecisionTypeAllowed},
				{EvalActionName: aws.String("s3:GetObject"), EvalResourceName: aws.String("*"), EvalDecision: iamtypes.PolicyEvaluationDecisionTypeImplicitDeny},
			}}, nil
		}}
	}

	denials, err := s.Simulator().Simulate(context.Background(), `{"Version":"2012-10-17"}`,
		[]string{"dynamodb:PutItem", "s3:GetObject"}, []string{"*"})
	require.NoError(t, err)
	assert.Equal(t, []Denial{{Action: "s3:GetObject", Resource: "*", Decision: "implicitDeny"}}, denials)

	none, err := s.Simulator().Simulate(context.Background(), "{}", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
