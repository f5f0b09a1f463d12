package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Function-field mocks for the read-only client surfaces.

type mockDynamoDB struct {
	ListTablesFunc func(ctx context.Context, in *dynamodb.ListTablesInput) (*dynamodb.ListTablesOutput, error)
}

func (m *mockDynamoDB) ListTables(ctx context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return m.ListTablesFunc(ctx, in)
}

type mockDynamoDBStreams struct {
	ListStreamsFunc func(ctx context.Context, in *dynamodbstreams.ListStreamsInput) (*dynamodbstreams.ListStreamsOutput, error)
}

func (m *mockDynamoDBStreams) ListStreams(ctx context.Context, in *dynamodbstreams.ListStreamsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.ListStreamsOutput, error) {
	return m.ListStreamsFunc(ctx, in)
}

type mockKinesis struct {
	ListStreamsFunc func(ctx context.Context, in *kinesis.ListStreamsInput) (*kinesis.ListStreamsOutput, error)
}

func (m *mockKinesis) ListStreams(ctx context.Context, in *kinesis.ListStreamsInput, _ ...func(*kinesis.Options)) (*kinesis.ListStreamsOutput, error) {
	return m.ListStreamsFunc(ctx, in)
}

type mockKMS struct {
	ListKeysFunc    func(ctx context.Context, in *kms.ListKeysInput) (*kms.ListKeysOutput, error)
	ListAliasesFunc func(ctx context.Context, in *kms.ListAliasesInput) (*kms.ListAliasesOutput, error)
}

func (m *mockKMS) ListKeys(ctx context.Context, in *kms.ListKeysInput, _ ...func(*kms.Options)) (*kms.ListKeysOutput, error) {
	return m.ListKeysFunc(ctx, in)
}

func (m *mockKMS) ListAliases(ctx context.Context, in *kms.ListAliasesInput, _ ...func(*kms.Options)) (*kms.ListAliasesOutput, error) {
	return m.ListAliasesFunc(ctx, in)
}

type mockLambda struct {
	ListFunctionsFunc           func(ctx context.Context, in *lambda.ListFunctionsInput) (*lambda.ListFunctionsOutput, error)
	ListEventSourceMappingsFunc func(ctx context.Context, in *lambda.ListEventSourceMappingsInput) (*lambda.ListEventSourceMappingsOutput, error)
}

func (m *mockLambda) ListFunctions(ctx context.Context, in *lambda.ListFunctionsInput, _ ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	return m.ListFunctionsFunc(ctx, in)
}

func (m *mockLambda) ListEventSourceMappings(ctx context.Context, in *lambda.ListEventSourceMappingsInput, _ ...func(*lambda.Options)) (*lambda.ListEventSourceMappingsOutput, error) {
	return m.ListEventSourceMappingsFunc(ctx, in)
}

type mockS3 struct {
	ListBucketsFunc func(ctx context.Context, in *s3.ListBucketsInput) (*s3.ListBucketsOutput, error)
}

func (m *mockS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return m.ListBucketsFunc(ctx, in)
}

type mockSNS struct {
	ListTopicsFunc func(ctx context.Context, in *sns.ListTopicsInput) (*sns.ListTopicsOutput, error)
}

func (m *mockSNS) ListTopics(ctx context.Context, in *sns.ListTopicsInput, _ ...func(*sns.Options)) (*sns.ListTopicsOutput, error) {
	return m.ListTopicsFunc(ctx, in)
}

type mockSFN struct {
	ListStateMachinesFunc func(ctx context.Context, in *sfn.ListStateMachinesInput) (*sfn.ListStateMachinesOutput, error)
	ListActivitiesFunc    func(ctx context.Context, in *sfn.ListActivitiesInput) (*sfn.ListActivitiesOutput, error)
	ListExecutionsFunc    func(ctx context.Context, in *sfn.ListExecutionsInput) (*sfn.ListExecutionsOutput, error)
}

func (m *mockSFN) ListStateMachines(ctx context.Context, in *sfn.ListStateMachinesInput, _ ...func(*sfn.Options)) (*sfn.ListStateMachinesOutput, error) {
	return m.ListStateMachinesFunc(ctx, in)
}

func (m *mockSFN) ListActivities(ctx context.Context, in *sfn.ListActivitiesInput, _ ...func(*sfn.Options)) (*sfn.ListActivitiesOutput, error) {
	return m.ListActivitiesFunc(ctx, in)
}

func (m *mockSFN) ListExecutions(ctx context.Context, in *sfn.ListExecutionsInput, _ ...func(*sfn.Options)) (*sfn.ListExecutionsOutput, error) {
	return m.ListExecutionsFunc(ctx, in)
}

type mockEC2 struct {
	DescribeRegionsFunc func(ctx context.Context, in *ec2.DescribeRegionsInput) (*ec2.DescribeRegionsOutput, error)
}

func (m *mockEC2) DescribeRegions(ctx context.Context, in *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	return m.DescribeRegionsFunc(ctx, in)
}

type mockIAM struct {
	SimulateCustomPolicyFunc func(ctx context.Context, in *iam.SimulateCustomPolicyInput) (*iam.SimulateCustomPolicyOutput, error)
}

func (m *mockIAM) SimulateCustomPolicy(ctx context.Context, in *iam.SimulateCustomPolicyInput, _ ...func(*iam.Options)) (*iam.SimulateCustomPolicyOutput, error) {
	return m.SimulateCustomPolicyFunc(ctx, in)
}
