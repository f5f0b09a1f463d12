package permissions

import (
	"regexp"

	"github.com/DrSkyle/rolesmith/pkg/engine/tree"
)

// Matcher assigns actions to resources of one path shape. Actions found in
// code that fit no resolved resource land on Default.
type Matcher struct {
	Pattern *regexp.Regexp
	Default string
	Actions tree.Actions
}

func matcher(pattern, def, service string, actions ...string) Matcher {
	return Matcher{
		Pattern: regexp.MustCompile(`^` + pattern),
		Default: def,
		Actions: Prefixed(service, actions...),
	}
}

// Prefixed qualifies bare action names with their service.
func Prefixed(service string, actions ...string) tree.Actions {
	out := make(tree.Actions, len(actions))
	for _, a := range actions {
		out[service+":"+a] = struct{}{}
	}
	return out
}

var (
	dynamodbGlobal = []string{"DescribeLimits", "DescribeReservedCapacity", "DescribeReservedCapacityOfferings", "ListTables", "PurchaseReservedCapacityOfferings"}
	s3Global       = []string{"CreateBucket", "ListAllMyBuckets"}
	statesGlobal   = []string{"CreateActivity", "CreateStateMachine", "ListActivities", "ListStateMachines", "SendTaskFailure", "SendTaskHeartbeat", "SendTaskSuccess"}
)

// ResourceActionMatchers lists, per service, the resource shapes in
// priority order. A resource takes the actions of the first shape it fits.
var ResourceActionMatchers = map[string][]Matcher{
	"dynamodb": {
		matcher(`table/.+/stream/.+`, "table/*/stream/*", "dynamodb",
			"DescribeStream", "GetRecords", "GetShardIterator"),
		matcher(`table/.+`, "table/*", "dynamodb",
			"BatchGetItem", "BatchWriteItem", "CreateTable", "DeleteItem", "DeleteTable", "DescribeTable",
			"DescribeTimeToLive", "GetItem", "ListStreams", "ListTagsOfResource", "PutItem", "Query", "Scan",
			"TagResource", "UntagResource", "UpdateItem", "UpdateTable", "UpdateTimeToLive"),
		matcher(`\*$`, "*", "dynamodb", dynamodbGlobal...),
	},
	"kinesis": {
		matcher(`stream/.+`, "stream/*", "kinesis",
			"AddTagsToStream", "DecreaseStreamRetentionPeriod", "DeleteStream", "DescribeLimits", "DescribeStream",
			"DisableEnhancedMonitoring", "EnableEnhancedMonitoring", "GetRecords", "GetShardIterator",
			"IncreaseStreamRetentionPeriod", "ListTagsForStream", "MergeShards", "PutRecord", "PutRecords",
			"RemoveTagsFromStream", "SplitShard", "UpdateShardCount"),
		matcher(`\*$`, "*", "kinesis", "CreateStream", "ListStreams"),
	},
	"kms": {
		matcher(`key/.+`, "key/*", "kms",
			"CancelKeyDeletion", "CreateAlias", "CreateGrant", "Decrypt", "DeleteAlias", "DeleteImportedKeyMaterial",
			"DescribeKey", "DisableKey", "DisableKeyRotation", "EnableKey", "EnableKeyRotation", "Encrypt",
			"GenerateDataKey", "GenerateDataKeyWithoutPlaintext", "GetKeyPolicy", "GetKeyRotationStatus",
			"GetParametersForImport", "ImportKeyMaterial", "ListGrants", "ListKeyPolicies", "PutKeyPolicy",
			"ReEncryptFrom", "ReEncryptTo", "RevokeGrant", "ScheduleKeyDeletion", "UpdateAlias", "UpdateKeyDescription"),
		matcher(`alias/.+`, "alias/*", "kms", "CreateAlias", "DeleteAlias", "UpdateAlias"),
		matcher(`\*$`, "*", "kms", "CreateKey", "GenerateRandom", "ListAliases", "ListKeys", "ListRetirableGrants"),
	},
	"lambda": {
		matcher(`.+`, "*", "lambda",
			"AddPermission", "CreateAlias", "DeleteAlias", "DeleteFunction", "GetAccountSettings", "GetAlias",
			"GetFunction", "GetFunctionConfiguration", "GetPolicy", "InvokeAsync", "InvokeFunction", "ListAliases",
			"ListVersionsByFunction", "PublishVersion", "RemovePermission", "UpdateAlias", "UpdateFunctionCode",
			"UpdateFunctionConfiguration"),
		matcher(`\*$`, "*", "lambda",
			"CreateEventSourceMapping", "CreateFunction", "DeleteEventSourceMapping", "GetEventSourceMapping",
			"ListEventSourceMappings", "ListFunctions", "UpdateEventSourceMapping"),
	},
	"s3": {
		matcher(`.+/.+`, "*/*", "s3",
			"AbortMultipartUpload", "DeleteObject", "DeleteObjectTagging", "GetObject", "GetObjectAcl",
			"GetObjectTagging", "GetObjectTorrent", "ListMultipartUploadParts", "PutObject", "PutObjectAcl",
			"PutObjectTagging", "RestoreObject"),
		matcher(`.+`, "*", "s3",
			"DeleteBucket", "DeleteBucketPolicy", "DeleteBucketWebsite", "DeleteReplicationConfiguration",
			"GetAccelerateConfiguration", "GetAnalyticsConfiguration", "GetBucketAcl", "GetBucketCORS",
			"GetBucketLocation", "GetBucketLogging", "GetBucketNotification", "GetBucketPolicy",
			"GetBucketRequestPayment", "GetBucketTagging", "GetBucketVersioning", "GetBucketWebsite",
			"GetInventoryConfiguration", "GetLifecycleConfiguration", "GetMetricsConfiguration",
			"GetReplicationConfiguration", "ListBucket", "ListBucketMultipartUploads", "ListBucketVersions",
			"PutAccelerateConfiguration", "PutAnalyticsConfiguration", "PutBucketAcl", "PutBucketCORS",
			"PutBucketLogging", "PutBucketNotification", "PutBucketPolicy", "PutBucketRequestPayment",
			"PutBucketTagging", "PutBucketVersioning", "PutBucketWebsite", "PutInventoryConfiguration",
			"PutLifecycleConfiguration", "PutMetricsConfiguration", "PutReplicationConfiguration"),
		matcher(`\*$`, "*", "s3", s3Global...),
	},
	"sns": {
		matcher(`.+`, "*", "sns",
			"AddPermission", "CheckIfPhoneNumberIsOptedOut", "ConfirmSubscription", "CreatePlatformApplication",
			"CreatePlatformEndpoint", "DeleteEndpoint", "DeletePlatformApplication", "DeleteTopic",
			"GetEndpointAttributes", "GetPlatformApplicationAttributes", "GetSMSAttributes",
			"GetSubscriptionAttributes", "GetTopicAttributes", "ListEndpointsByPlatformApplication",
			"ListPhoneNumbersOptedOut", "ListPlatformApplications", "ListSubscriptions", "ListSubscriptionsByTopic",
			"OptInPhoneNumber", "Publish", "RemovePermission", "SetEndpointAttributes",
			"SetPlatformApplicationAttributes", "SetSMSAttributes", "SetSubscriptionAttributes",
			"SetTopicAttributes", "Subscribe", "Unsubscribe"),
		matcher(`\*$`, "*", "sns", "CreateTopic", "ListTopics"),
	},
	"states": {
		matcher(`stateMachine:.+`, "stateMachine:*", "states", "DeleteStateMachine", "DescribeStateMachine", "ListExecutions"),
		matcher(`activity:.+`, "activity:*", "states", "DeleteActivity", "DescribeActivity", "GetActivityTask"),
		matcher(`execution:.+:.+`, "execution:*:*", "states", "DescribeExecution", "GetExecutionHistory", "StartExecution", "StopExecution"),
		matcher(`\*$`, "*", "states", statesGlobal...),
	},
}

// Regionless services are folded into the empty region after matching.
var Regionless = map[string]bool{
	"s3": true,
}

// Resourceless actions only apply to the wildcard resource.
var Resourceless = map[string][]string{
	"dynamodb": qualified("dynamodb", dynamodbGlobal),
	"s3":       qualified("s3", s3Global),
	"states":   qualified("states", statesGlobal),
}

func qualified(service string, actions []string) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = service + ":" + a
	}
	return out
}

// Bundles granted from function configuration rather than code.
var (
	VPCActions = []string{"ec2:CreateNetworkInterface", "ec2:DeleteNetworkInterface", "ec2:DescribeNetworkInterfaces"}

	LogGroupActions  = []string{"logs:CreateLogGroup"}
	LogStreamActions = []string{"logs:CreateLogStream"}
	LogEventActions  = []string{"logs:PutLogEvents"}
)

// StreamReadActions are granted on every stream mapped to a function.
func StreamReadActions(service string) []string {
	return qualified(service, []string{"DescribeStream", "GetRecords", "GetShardIterator", "ListStreams"})
}

// Catalog maps each of rolesmith's own listers to the IAM actions it calls.
var Catalog = map[string][]string{
	"DynamoDB": {
		"dynamodb:ListTables",
		"dynamodb:ListStreams",
	},
	"Kinesis": {
		"kinesis:ListStreams",
	},
	"KMS": {
		"kms:ListAliases",
		"kms:ListKeys",
	},
	"Lambda": {
		"lambda:ListFunctions",
		"lambda:ListEventSourceMappings",
	},
	"S3": {
		"s3:ListAllMyBuckets",
	},
	"SNS": {
		"sns:ListTopics",
	},
	"StepFunctions": {
		"states:ListActivities",
		"states:ListExecutions",
		"states:ListStateMachines",
	},
	"IAM": {
		"iam:SimulateCustomPolicy", // --verify
	},
}

// CorePermissions returns what every run needs regardless of services.
func CorePermissions() []string {
	return []string{
		"sts:GetCallerIdentity",
		"ec2:DescribeRegions",
	}
}
