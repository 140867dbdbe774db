// Package identity resolves the AWS caller identity from STS and builds the
// ARNs and owner names derived from it.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// nonAlphanumeric matches any character that is not a lowercase letter or digit.
var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// PolicyARN returns the customer-managed policy ARN for policyName in
// accountID. The partition is always "aws". An empty accountID produces
// "arn:aws:iam:::policy/<name>", which IAM rejects.
func PolicyARN(accountID, policyName string) string {
	return arn.ARN{
		Partition: "aws",
		Service:   "iam",
		AccountID: accountID,
		Resource:  "policy/" + policyName,
	}.String()
}

// OwnerName extracts the trailing identifier from an AWS ARN and normalizes
// it to a tag-friendly owner name:
//   - take the last path segment of the resource
//   - strip an @domain suffix (SSO sessions)
//   - lowercase, collapse non-alphanumeric runs to "-", trim hyphens
func OwnerName(callerARN string) (string, error) {
	if callerARN == "" {
		return "", fmt.Errorf("empty ARN")
	}

	parsed, err := arn.Parse(callerARN)
	if err != nil {
		return "", fmt.Errorf("malformed ARN: %w", err)
	}
	if parsed.Resource == "" {
		return "", fmt.Errorf("malformed ARN: empty resource field")
	}

	segments := strings.Split(parsed.Resource, "/")
	identifier := segments[len(segments)-1]

	if idx := strings.Index(identifier, "@"); idx > 0 {
		identifier = identifier[:idx]
	}

	identifier = strings.ToLower(identifier)
	identifier = nonAlphanumeric.ReplaceAllString(identifier, "-")
	identifier = strings.Trim(identifier, "-")

	if identifier == "" {
		return "", fmt.Errorf("ARN normalized to empty string: %s", callerARN)
	}
	return identifier, nil
}
