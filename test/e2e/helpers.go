//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  []byte
)

// BinaryPath builds the CLI once per test binary.
func BinaryPath(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "rolesmith-e2e")
		if err != nil {
			buildErr = []byte(err.Error())
			return
		}
		binPath = filepath.Join(dir, "rolesmith")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/rolesmith")
		cmd.Dir = "../../"
		cmd.Env = os.Environ()
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = out
		}
	})
	if buildErr != nil {
		t.Fatalf("Build failed: %s", buildErr)
	}
	return binPath
}

// Rolesmith runs the CLI against LocalStack and returns stdout, stderr
// and the exit code.
func Rolesmith(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(BinaryPath(t), args...)
	cmd.Env = append(os.Environ(),
		"AWS_ENDPOINT_URL="+endpointURL,
		"AWS_ACCESS_KEY_ID=test",
		"AWS_SECRET_ACCESS_KEY=test",
		"AWS_REGION="+region,
		"AWS_CONFIG_FILE=/dev/null",
		"AWS_SHARED_CREDENTIALS_FILE=/dev/null",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("Failed to run rolesmith: %v", err)
	}
	return stdout.String(), stderr.String(), code
}

// ProvisionTable creates a DynamoDB table in LocalStack.
func ProvisionTable(t *testing.T, name string) {
	t.Helper()
	client := dynamodb.NewFromConfig(awsCfg)
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS}},
		KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash}},
	})
	if err != nil {
		t.Fatalf("Failed to create table %s: %v", name, err)
	}
}

// WriteProject lays out files under a fresh project directory.
func WriteProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
