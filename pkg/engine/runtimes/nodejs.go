package runtimes

import (
	"path/filepath"
	"regexp"
	"strings"
)

func nodeTool(node, cli string) dependencyTool {
	return dependencyTool{
		entry: func(root, module string) string {
			return filepath.Join(root, module+".js")
		},
		command: func(entry, root string) []string {
			if cli == "" {
				return []string{"dependency-tree", entry, "--directory", root, "--list-form"}
			}
			return []string{node, cli, entry, "--directory", root, "--list-form"}
		},
		keep: func(path string) bool {
			return !strings.Contains(path, "/node_modules/aws-sdk/") && !strings.Contains(path, "/node_modules/@aws-sdk/")
		},
		skipDir: func(path string) bool {
			base := filepath.Base(path)
			return (base == "aws-sdk" || base == "@aws-sdk") && filepath.Base(filepath.Dir(path)) == "node_modules"
		},
	}
}

func nodeService(service, constructor string) serviceRule {
	return serviceRule{
		service: service,
		pattern: regexp.MustCompile(`\.\s*` + constructor + `(\()`),
	}
}

func nodeCall(method string, signed bool) *regexp.Regexp {
	m := regexp.QuoteMeta(method)
	expr := `\.\s*` + m + `\(`
	if signed {
		expr += `|\.\s*getSignedUrl\(\s*['"]` + m + `['"]`
	}
	return regexp.MustCompile(expr)
}

func nodeActions(service string, signed bool, methods ...string) []actionRule {
	rules := make([]actionRule, 0, len(methods))
	for _, m := range methods {
		rules = append(rules, actionRule{action: capitalize(m), pattern: nodeCall(m, signed)})
	}
	return qualify(service, rules)
}

// nodeMethods maps methods that don't follow the naming rule. Pairs are
// action, method.
func nodeMethods(service string, pairs ...string) []actionRule {
	rules := make([]actionRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rules = append(rules, actionRule{action: pairs[i], pattern: nodeCall(pairs[i+1], false)})
	}
	return qualify(service, rules)
}

func lowerAll(actions []string) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = lowerFirst(a)
	}
	return out
}

var nodeTable = &table{
	name:      "nodejs",
	extension: ".js",
	services: []serviceRule{
		nodeService("dynamodb", `DynamoDB`),
		nodeService("dynamodb", `DynamoDB\.DocumentClient`),
		nodeService("dynamodb", `DynamoDBStreams`),
		nodeService("kinesis", `Kinesis`),
		nodeService("kms", `KMS`),
		nodeService("lambda", `Lambda`),
		nodeService("s3", `S3`),
		nodeService("ses", `SES`),
		nodeService("sns", `SNS`),
		nodeService("states", `StepFunctions`),
	},
	window:  1024,
	region:  regexp.MustCompile(`['"]?\bregion['"]?\s*:\s*([^\s].*?)\s*(?:[,}]|\z)`),
	literal: regexp.MustCompile(`^['"]([\w-]+)['"]`),
	env:     regexp.MustCompile(`^process\.env(?:\.|\[['"])(\w+)(?:['"]\])?`),
	auth:    regexp.MustCompile(`accessKeyId|secretAccessKey|sessionToken|credentials`),
	actions: map[string][]actionRule{
		"dynamodb": append(nodeActions("dynamodb", false,
			"batchGetItem", "batchWriteItem", "createTable", "deleteItem", "deleteTable",
			"describeLimits", "describeStream", "describeTable", "describeTimeToLive", "getItem",
			"getRecords", "getShardIterator", "listStreams", "listTables", "listTagsOfResource",
			"putItem", "query", "scan", "tagResource", "untagResource",
			"updateItem", "updateTable", "updateTimeToLive"),
			// DocumentClient
			nodeMethods("dynamodb",
				"BatchGetItem", "batchGet",
				"BatchWriteItem", "batchWrite",
				"DeleteItem", "delete",
				"GetItem", "get",
				"PutItem", "put",
				"UpdateItem", "update")...),
		"kinesis": nodeActions("kinesis", false,
			"addTagsToStream", "createStream", "decreaseStreamRetentionPeriod", "deleteStream", "describeLimits",
			"describeStream", "disableEnhancedMonitoring", "enableEnhancedMonitoring", "getRecords", "getShardIterator",
			"increaseStreamRetentionPeriod", "listStreams", "listTagsForStream", "mergeShards", "putRecord",
			"putRecords", "removeTagsFromStream", "splitShard", "updateShardCount"),
		"kms": append(nodeActions("kms", false,
			"cancelKeyDeletion", "createAlias", "createGrant", "createKey", "decrypt",
			"deleteAlias", "deleteImportedKeyMaterial", "describeKey", "disableKey", "disableKeyRotation",
			"enableKey", "enableKeyRotation", "encrypt", "generateDataKey", "generateDataKeyWithoutPlaintext",
			"generateRandom", "getKeyPolicy", "getKeyRotationStatus", "getParametersForImport", "importKeyMaterial",
			"listAliases", "listGrants", "listKeyPolicies", "listKeys", "listRetirableGrants",
			"putKeyPolicy", "revokeGrant", "scheduleKeyDeletion", "updateAlias", "updateKeyDescription"),
			nodeMethods("kms",
				"ReEncryptFrom", "reEncrypt",
				"ReEncryptTo", "reEncrypt")...),
		"lambda": append(nodeActions("lambda", false,
			"addPermission", "createAlias", "createEventSourceMapping", "createFunction", "deleteAlias",
			"deleteEventSourceMapping", "deleteFunction", "getAccountSettings", "getAlias", "getEventSourceMapping",
			"getFunction", "getFunctionConfiguration", "getPolicy", "invokeAsync", "listAliases",
			"listEventSourceMappings", "listFunctions", "listVersionsByFunction", "publishVersion", "removePermission",
			"updateAlias", "updateEventSourceMapping", "updateFunctionCode", "updateFunctionConfiguration"),
			nodeMethods("lambda", "InvokeFunction", "invoke")...),
		"s3": append(nodeActions("s3", true,
			"abortMultipartUpload", "createBucket", "deleteBucket", "deleteBucketPolicy", "deleteBucketWebsite",
			"deleteObject", "deleteObjectTagging", "getBucketAcl", "getBucketLocation", "getBucketLogging",
			"getBucketNotification", "getBucketPolicy", "getBucketRequestPayment", "getBucketTagging", "getBucketVersioning",
			"getBucketWebsite", "getObject", "getObjectAcl", "getObjectTagging", "getObjectTorrent",
			"putBucketAcl", "putBucketLogging", "putBucketNotification", "putBucketPolicy", "putBucketRequestPayment",
			"putBucketTagging", "putBucketVersioning", "putBucketWebsite", "putObject", "putObjectAcl",
			"putObjectTagging", "restoreObject"),
			nodeMethods("s3",
				"DeleteObject", "deleteObjects",
				"DeleteReplicationConfiguration", "deleteBucketReplication",
				"GetAccelerateConfiguration", "getBucketAccelerateConfiguration",
				"GetAnalyticsConfiguration", "getBucketAnalyticsConfiguration",
				"GetAnalyticsConfiguration", "listBucketAnalyticsConfigurations",
				"GetBucketCORS", "getBucketCors",
				"GetBucketNotification", "getBucketNotificationConfiguration",
				"GetInventoryConfiguration", "getBucketInventoryConfiguration",
				"GetInventoryConfiguration", "listBucketInventoryConfigurations",
				"GetLifecycleConfiguration", "getBucketLifecycle",
				"GetLifecycleConfiguration", "getBucketLifecycleConfiguration",
				"GetMetricsConfiguration", "getBucketMetricsConfiguration",
				"GetMetricsConfiguration", "listBucketMetricsConfigurations",
				"GetObject", "headObject",
				"GetReplicationConfiguration", "getBucketReplication",
				"ListAllMyBuckets", "listBuckets",
				"ListBucket", "headBucket",
				"ListBucket", "listObjects",
				"ListBucket", "listObjectsV2",
				"ListBucketMultipartUploads", "listMultipartUploads",
				"ListBucketVersions", "listObjectVersions",
				"ListMultipartUploadParts", "listParts",
				"PutAccelerateConfiguration", "putBucketAccelerateConfiguration",
				"PutAnalyticsConfiguration", "deleteBucketAnalyticsConfiguration",
				"PutAnalyticsConfiguration", "putBucketAnalyticsConfiguration",
				"PutBucketCORS", "deleteBucketCors",
				"PutBucketCORS", "putBucketCors",
				"PutBucketNotification", "putBucketNotificationConfiguration",
				"PutBucketTagging", "deleteBucketTagging",
				"PutInventoryConfiguration", "deleteBucketInventoryConfiguration",
				"PutInventoryConfiguration", "putBucketInventoryConfiguration",
				"PutLifecycleConfiguration", "deleteBucketLifecycle",
				"PutLifecycleConfiguration", "putBucketLifecycle",
				"PutLifecycleConfiguration", "putBucketLifecycleConfiguration",
				"PutMetricsConfiguration", "deleteBucketMetricsConfiguration",
				"PutMetricsConfiguration", "putBucketMetricsConfiguration",
				"PutObject", "completeMultipartUpload",
				"PutObject", "copyObject",
				"PutObject", "createMultipartUpload",
				"PutObject", "createPresignedPost",
				"PutObject", "upload",
				"PutObject", "uploadPart",
				"PutObject", "uploadPartCopy",
				"PutReplicationConfiguration", "putBucketReplication")...),
		"ses":    nodeActions("ses", true, lowerAll(sesActions)...),
		"sns":    nodeActions("sns", false, lowerAll(snsActions)...),
		"states": nodeActions("states", false, lowerAll(statesActions)...),
	},
}
