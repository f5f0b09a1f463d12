package runtimes

import (
	_ "embed"
	"path/filepath"
	"regexp"
	"strings"
)

//go:embed list_dependencies.py
var listDependencies string

func pythonTool(interpreter string) dependencyTool {
	return dependencyTool{
		entry: func(root, module string) string {
			return filepath.Join(root, strings.ReplaceAll(module, ".", "/")+".py")
		},
		command: func(entry, root string) []string {
			return []string{interpreter, "-c", listDependencies, entry, root}
		},
		keep:    func(string) bool { return true },
		skipDir: func(string) bool { return false },
	}
}

func pyService(service, client string) serviceRule {
	return serviceRule{
		service: service,
		pattern: regexp.MustCompile(`\.[\s\\]*(?:client|resource)(\()[\s\\]*['"]` + client + `['"]`),
	}
}

// pyCall matches client.method( and client.generate_presigned_url('method'.
func pyCall(method string) *regexp.Regexp {
	m := regexp.QuoteMeta(method)
	return regexp.MustCompile(`\.[\s\\]*` + m + `\(|\.[\s\\]*generate_presigned_url\([\s\\]*['"]` + m + `['"]`)
}

func pyActions(service string, actions ...string) []actionRule {
	rules := make([]actionRule, 0, len(actions))
	for _, a := range actions {
		rules = append(rules, actionRule{action: a, pattern: pyCall(snakeCase(a))})
	}
	return qualify(service, rules)
}

// pyMethods maps methods that don't follow the naming rule. Pairs are
// action, method.
func pyMethods(service string, pairs ...string) []actionRule {
	rules := make([]actionRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rules = append(rules, actionRule{action: pairs[i], pattern: pyCall(pairs[i+1])})
	}
	return qualify(service, rules)
}

var pythonTable = &table{
	name:      "python",
	extension: ".py",
	services: []serviceRule{
		pyService("dynamodb", "dynamodb"),
		pyService("kinesis", "kinesis"),
		pyService("kms", "kms"),
		pyService("lambda", "lambda"),
		pyService("s3", "s3"),
		pyService("ses", "ses"),
		pyService("sns", "sns"),
		pyService("states", "stepfunctions"),
	},
	window:  512,
	region:  regexp.MustCompile(`\bregion_name[\s\\]*=[\s\\]*([^\s].*?)[\s\\]*(?:,|\z)`),
	literal: regexp.MustCompile(`^['"]([\w-]+)['"]`),
	env:     regexp.MustCompile(`^(?:os\.environ\[['"](\w+)['"]|os\.environ\.get\(['"](\w+)['"]|os\.getenv\(['"](\w+)['"])`),
	auth:    regexp.MustCompile(`aws_access_key_id|aws_secret_access_key|aws_session_token`),
	actions: map[string][]actionRule{
		"dynamodb": pyActions("dynamodb",
			"BatchGetItem", "BatchWriteItem", "CreateTable", "DeleteItem", "DeleteTable",
			"DescribeLimits", "DescribeTable", "DescribeTimeToLive", "GetItem", "ListTables",
			"ListTagsOfResource", "PutItem", "Query", "Scan", "TagResource",
			"UntagResource", "UpdateItem", "UpdateTable", "UpdateTimeToLive"),
		"kinesis": pyActions("kinesis",
			"AddTagsToStream", "CreateStream", "DecreaseStreamRetentionPeriod", "DeleteStream", "DescribeLimits",
			"DescribeStream", "DisableEnhancedMonitoring", "EnableEnhancedMonitoring", "GetRecords", "GetShardIterator",
			"IncreaseStreamRetentionPeriod", "ListStreams", "ListTagsForStream", "MergeShards", "PutRecord",
			"PutRecords", "RemoveTagsFromStream", "SplitShard", "UpdateShardCount"),
		"kms": append(pyActions("kms",
			"CancelKeyDeletion", "CreateAlias", "CreateGrant", "CreateKey", "Decrypt",
			"DeleteAlias", "DeleteImportedKeyMaterial", "DescribeKey", "DisableKey", "DisableKeyRotation",
			"EnableKey", "EnableKeyRotation", "Encrypt", "GenerateDataKey", "GenerateDataKeyWithoutPlaintext",
			"GenerateRandom", "GetKeyPolicy", "GetKeyRotationStatus", "GetParametersForImport", "ImportKeyMaterial",
			"ListAliases", "ListGrants", "ListKeyPolicies", "ListKeys", "ListRetirableGrants",
			"PutKeyPolicy", "RevokeGrant", "ScheduleKeyDeletion", "UpdateAlias", "UpdateKeyDescription"),
			pyMethods("kms",
				"ReEncryptFrom", "re_encrypt",
				"ReEncryptTo", "re_encrypt")...),
		"lambda": append(pyActions("lambda",
			"AddPermission", "CreateAlias", "CreateEventSourceMapping", "CreateFunction", "DeleteAlias",
			"DeleteEventSourceMapping", "DeleteFunction", "GetAccountSettings", "GetAlias", "GetEventSourceMapping",
			"GetFunction", "GetFunctionConfiguration", "GetPolicy", "InvokeAsync", "ListAliases",
			"ListEventSourceMappings", "ListFunctions", "ListVersionsByFunction", "PublishVersion", "RemovePermission",
			"UpdateAlias", "UpdateEventSourceMapping", "UpdateFunctionCode", "UpdateFunctionConfiguration"),
			pyMethods("lambda", "InvokeFunction", "invoke")...),
		"s3": append(pyActions("s3",
			"AbortMultipartUpload", "CreateBucket", "DeleteBucket", "DeleteBucketPolicy", "DeleteBucketWebsite",
			"DeleteObject", "DeleteObjectTagging", "GetBucketAcl", "GetBucketLocation", "GetBucketLogging",
			"GetBucketNotification", "GetBucketPolicy", "GetBucketRequestPayment", "GetBucketTagging", "GetBucketVersioning",
			"GetBucketWebsite", "GetObject", "GetObjectAcl", "GetObjectTagging", "GetObjectTorrent",
			"PutBucketAcl", "PutBucketLogging", "PutBucketNotification", "PutBucketPolicy", "PutBucketRequestPayment",
			"PutBucketTagging", "PutBucketVersioning", "PutBucketWebsite", "PutObject", "PutObjectAcl",
			"PutObjectTagging", "RestoreObject"),
			pyMethods("s3",
				"DeleteObject", "delete_objects",
				"DeleteReplicationConfiguration", "delete_bucket_replication",
				"GetAccelerateConfiguration", "get_bucket_accelerate_configuration",
				"GetAnalyticsConfiguration", "get_bucket_analytics_configuration",
				"GetAnalyticsConfiguration", "list_bucket_analytics_configurations",
				"GetBucketCORS", "get_bucket_cors",
				"GetBucketNotification", "get_bucket_notification_configuration",
				"GetInventoryConfiguration", "get_bucket_inventory_configuration",
				"GetInventoryConfiguration", "list_bucket_inventory_configurations",
				"GetLifecycleConfiguration", "get_bucket_lifecycle",
				"GetLifecycleConfiguration", "get_bucket_lifecycle_configuration",
				"GetMetricsConfiguration", "get_bucket_metrics_configuration",
				"GetMetricsConfiguration", "list_bucket_metrics_configurations",
				"GetObject", "download_file",
				"GetObject", "download_fileobj",
				"GetObject", "head_object",
				"GetReplicationConfiguration", "get_bucket_replication",
				"ListAllMyBuckets", "list_buckets",
				"ListBucket", "head_bucket",
				"ListBucket", "list_objects",
				"ListBucket", "list_objects_v2",
				"ListBucketMultipartUploads", "list_multipart_uploads",
				"ListBucketVersions", "list_object_versions",
				"ListMultipartUploadParts", "list_parts",
				"PutAccelerateConfiguration", "put_bucket_accelerate_configuration",
				"PutAnalyticsConfiguration", "delete_bucket_analytics_configuration",
				"PutAnalyticsConfiguration", "put_bucket_analytics_configuration",
				"PutBucketCORS", "delete_bucket_cors",
				"PutBucketCORS", "put_bucket_cors",
				"PutBucketNotification", "put_bucket_notification_configuration",
				"PutBucketTagging", "delete_bucket_tagging",
				"PutInventoryConfiguration", "delete_bucket_inventory_configuration",
				"PutInventoryConfiguration", "put_bucket_inventory_configuration",
				"PutLifecycleConfiguration", "delete_bucket_lifecycle",
				"PutLifecycleConfiguration", "put_bucket_lifecycle",
				"PutLifecycleConfiguration", "put_bucket_lifecycle_configuration",
				"PutMetricsConfiguration", "delete_bucket_metrics_configuration",
				"PutMetricsConfiguration", "put_bucket_metrics_configuration",
				"PutObject", "complete_multipart_upload",
				"PutObject", "copy",
				"PutObject", "copy_object",
				"PutObject", "create_multipart_upload",
				"PutObject", "generate_presigned_post",
				"PutObject", "upload_file",
				"PutObject", "upload_fileobj",
				"PutObject", "upload_part",
				"PutObject", "upload_part_copy",
				"PutReplicationConfiguration", "put_bucket_replication")...),
		"ses":    pyActions("ses", sesActions...),
		"sns":    pyActions("sns", snsActions...),
		"states": pyActions("states", statesActions...),
	},
}

var (
	sesActions = []string{
		"CloneReceiptRuleSet", "CreateReceiptFilter", "CreateReceiptRule", "CreateReceiptRuleSet", "DeleteIdentity",
		"DeleteIdentityPolicy", "DeleteReceiptFilter", "DeleteReceiptRule", "DeleteReceiptRuleSet", "DeleteVerifiedEmailAddress",
		"DescribeActiveReceiptRuleSet", "DescribeReceiptRule", "DescribeReceiptRuleSet", "GetIdentityDkimAttributes", "GetIdentityNotificationAttributes",
		"GetIdentityPolicies", "GetIdentityVerificationAttributes", "GetSendQuota", "GetSendStatistics", "ListIdentities",
		"ListIdentityPolicies", "ListReceiptFilters", "ListReceiptRuleSets", "ListVerifiedEmailAddresses", "PutIdentityPolicy",
		"ReorderReceiptRuleSet", "SendBounce", "SendEmail", "SendRawEmail", "SetActiveReceiptRuleSet",
		"SetIdentityDkimEnabled", "SetIdentityFeedbackForwardingEnabled", "SetIdentityNotificationTopic", "SetReceiptRulePosition", "UpdateReceiptRule",
		"VerifyDomainDkim", "VerifyDomainIdentity", "VerifyEmailAddress", "VerifyEmailIdentity",
	}
	snsActions = []string{
		"AddPermission", "CheckIfPhoneNumberIsOptedOut", "ConfirmSubscription", "CreatePlatformApplication", "CreatePlatformEndpoint",
		"CreateTopic", "DeleteEndpoint", "DeletePlatformApplication", "DeleteTopic", "GetEndpointAttributes",
		"GetPlatformApplicationAttributes", "GetSMSAttributes", "GetSubscriptionAttributes", "GetTopicAttributes", "ListEndpointsByPlatformApplication",
		"ListPhoneNumbersOptedOut", "ListPlatformApplications", "ListSubscriptions", "ListSubscriptionsByTopic", "ListTopics",
		"OptInPhoneNumber", "Publish", "RemovePermission", "SetEndpointAttributes", "SetPlatformApplicationAttributes",
		"SetSMSAttributes", "SetSubscriptionAttributes", "SetTopicAttributes", "Subscribe", "Unsubscribe",
	}
	statesActions = []string{
		"CreateActivity", "CreateStateMachine", "DeleteActivity", "DeleteStateMachine", "DescribeActivity",
		"DescribeExecution", "DescribeStateMachine", "GetActivityTask", "GetExecutionHistory", "ListActivities",
		"ListExecutions", "ListStateMachines", "SendTaskFailure", "SendTaskHeartbeat", "SendTaskSuccess",
		"StartExecution", "StopExecution",
	}
)
