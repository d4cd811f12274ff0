package estimator

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Task tokens ride through the async endpoint in the request's custom
// attributes, base64-encoded so SageMaker's attribute charset cannot
// mangle them.

// EncodeTaskAttributes renders a Step Functions task token as a custom
// attributes string.
func EncodeTaskAttributes(taskToken string) string {
	return "TaskToken=" + base64.StdEncoding.EncodeToString([]byte(taskToken))
}

// ParseTaskAttributes extracts and decodes the task token from a
// custom attributes string (semicolon-separated key=value pairs).
func ParseTaskAttributes(attrs string) (string, error) {
	for _, attr := range strings.Split(attrs, ";") {
		key, value, found := strings.Cut(attr, "=")
		if !found || strings.TrimSpace(key) != "TaskToken" {
			continue
		}
		token, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("failed to decode task token: %w", err)
		}
		return string(token), nil
	}
	return "", fmt.Errorf("no TaskToken attribute in %q", attrs)
}
